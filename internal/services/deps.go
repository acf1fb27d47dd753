package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"booking-engine/models"
	"booking-engine/monitoring"

	"github.com/google/uuid"
)

// AuditPublisher fans committed audit entries out to other consumers.
type AuditPublisher interface {
	Publish(ctx context.Context, entry models.AuditEntry) error
}

// Deps are the collaborators shared by the lifecycle controller and the
// attendance tracker. Only Store is required.
type Deps struct {
	Store     Store
	Locker    Locker
	Publisher AuditPublisher
	Monitor   *monitoring.Monitor
	Logger    *slog.Logger
	Now       func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

func (d Deps) lock(ctx context.Context, bookingID string) (func(), error) {
	if d.Locker == nil {
		return func() {}, nil
	}
	return d.Locker.Acquire(ctx, bookingID)
}

func (d Deps) audit(actor models.Actor, action models.AuditAction, b *models.Booking, metadata map[string]any, format string, args ...any) models.AuditEntry {
	return models.AuditEntry{
		ID:          uuid.NewString(),
		ActorID:     actor.ID,
		ActorName:   actor.Label(),
		Action:      action,
		TargetID:    b.ID,
		Kind:        b.Kind,
		Description: fmt.Sprintf(format, args...),
		Metadata:    metadata,
		Timestamp:   d.Now().UTC(),
	}
}

// published is called after commit; failures never reach the caller.
func (d Deps) published(ctx context.Context, entry models.AuditEntry) {
	if d.Publisher == nil {
		return
	}
	if err := d.Publisher.Publish(ctx, entry); err != nil {
		d.Logger.Error("Failed to publish audit entry", "error", err, "action", entry.Action, "booking_id", entry.TargetID)
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
