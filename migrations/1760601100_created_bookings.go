package migrations

import (
	"booking-engine/internal/store"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

const adminOnlyRule = `@request.auth.collectionName = "admins"`

func init() {
	m.Register(func(app core.App) error {
		collection := store.NewBookingsCollection()
		collection.ListRule = types.Pointer(adminOnlyRule)
		collection.ViewRule = types.Pointer(adminOnlyRule)
		collection.CreateRule = types.Pointer(adminOnlyRule)

		return app.Save(collection)
	}, func(app core.App) error {
		return deleteCollection(app, store.BookingsCollection)
	})
}

func deleteCollection(app core.App, name string) error {
	collection, err := app.FindCollectionByNameOrId(name)
	if err != nil {
		return err
	}
	return app.Delete(collection)
}
