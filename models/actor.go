package models

type Capability string

const (
	CapabilityUndoParticipation Capability = "undo-participation"
	CapabilityHardDelete        Capability = "hard-delete"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Actor is the admin performing an operation. Capabilities are computed by
// the authorization layer; the engine only checks for them by name.
type Actor struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Role         Role                `json:"role"`
	Capabilities map[Capability]bool `json:"capabilities,omitempty"`
}

func NewActor(id, name string, role Role, caps ...Capability) Actor {
	a := Actor{ID: id, Name: name, Role: role, Capabilities: make(map[Capability]bool, len(caps))}
	for _, c := range caps {
		a.Capabilities[c] = true
	}
	return a
}

func (a Actor) Can(c Capability) bool {
	return a.Capabilities[c]
}

// Label is the value written to updatedBy/participatedBy style fields.
func (a Actor) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
