// Package migrations holds the bun migration set for the accounts table and
// the policy rule store.
package migrations

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the registry applied by `portcullis db migrate`.
var Migrations = migrate.NewMigrations()
