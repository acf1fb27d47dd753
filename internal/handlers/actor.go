package handlers

import (
	"booking-engine/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

const AdminsCollection = "admins"

// actorFromAuth builds the acting admin from the auth record. Capabilities
// come from the record's role and grant flags.
func actorFromAuth(e *core.RequestEvent) (models.Actor, error) {
	if e.Auth == nil || e.Auth.Collection().Name != AdminsCollection {
		return models.Actor{}, apis.NewUnauthorizedError("Admin access required", nil)
	}
	return actorFromRecord(e.Auth), nil
}

func actorFromRecord(rec *core.Record) models.Actor {
	name := rec.GetString("name")
	if name == "" {
		name = rec.Email()
	}

	role := models.Role(rec.GetString("role"))
	if role == "" {
		role = models.RoleAdmin
	}

	var caps []models.Capability
	if role == models.RoleSuperAdmin {
		caps = append(caps, models.CapabilityUndoParticipation, models.CapabilityHardDelete)
	} else if rec.GetBool("can_undo_participation") {
		caps = append(caps, models.CapabilityUndoParticipation)
	}
	return models.NewActor(rec.Id, name, role, caps...)
}
