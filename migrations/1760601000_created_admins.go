package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewAuthCollection("admins")
		collection.Fields.Add(
			&core.TextField{Name: "name", Max: 120},
			&core.SelectField{Name: "role", MaxSelect: 1, Values: []string{"admin", "super_admin"}},
			&core.BoolField{Name: "can_undo_participation"},
		)
		collection.PasswordAuth.Enabled = true
		collection.PasswordAuth.IdentityFields = []string{"email"}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("admins")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
