package migrations

import (
	"booking-engine/internal/store"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		bookings, err := app.FindCollectionByNameOrId(store.BookingsCollection)
		if err != nil {
			return err
		}

		collection := store.NewAttendanceCollection(bookings.Id)
		collection.ListRule = types.Pointer(adminOnlyRule)
		collection.ViewRule = types.Pointer(adminOnlyRule)

		return app.Save(collection)
	}, func(app core.App) error {
		return deleteCollection(app, store.AttendanceCollection)
	})
}
