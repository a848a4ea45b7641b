package database

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/salesforge-io/salesforge/internal/database/migration_20250116_0000"
	"github.com/salesforge-io/salesforge/internal/database/migrations"
)

// Migrations returns the full apiserver schema history. For help writing
// migration steps, see the gorm documentation on migrations:
// https://gorm.io/docs/migration.html
func Migrations() *migrations.Migrations {
	return &migrations.Migrations{
		GormOptions: &gormigrate.Options{
			TableName:      "apiserver_migrations",
			IDColumnName:   "id",
			IDColumnSize:   40,
			UseTransaction: false,
		},
		Migrations: []*gormigrate.Migration{
			migration_20250116_0000.New(),
		},
	}
}
