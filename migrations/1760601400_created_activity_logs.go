package migrations

import (
	"booking-engine/internal/store"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

// Activity logs are append-only: no create, update or delete rules, so only
// the application itself (and superusers) can write them.
func init() {
	m.Register(func(app core.App) error {
		collection := store.NewActivityCollection()
		collection.ListRule = types.Pointer(adminOnlyRule)
		collection.ViewRule = types.Pointer(adminOnlyRule)

		return app.Save(collection)
	}, func(app core.App) error {
		return deleteCollection(app, store.ActivityCollection)
	})
}
