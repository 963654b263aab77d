// Package cmdutil shares service construction between CLI subcommands.
package cmdutil

import (
	"fmt"

	"github.com/uptrace/bun"

	"github.com/portcullis-auth/portcullis/internal/accounts"
	"github.com/portcullis-auth/portcullis/internal/config"
	"github.com/portcullis-auth/portcullis/internal/db/bunx"
	"github.com/portcullis-auth/portcullis/internal/policy"
)

// Bundle holds the database-backed collaborators a CLI subcommand needs.
// Close releases the underlying connection.
type Bundle struct {
	DB       *bun.DB
	Accounts accounts.Repository
	Enforcer *policy.Enforcer
}

// NewBundle connects to the configured database and builds the account
// repository and policy enforcer over it.
func NewBundle(cfg *config.Config) (*Bundle, error) {
	db, err := bunx.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	enforcer, err := policy.NewEnforcer(db)
	if err != nil {
		bunx.Close(db)
		return nil, fmt.Errorf("failed to create policy enforcer: %w", err)
	}

	return &Bundle{
		DB:       db,
		Accounts: accounts.NewBunAccountRepository(db),
		Enforcer: enforcer,
	}, nil
}

// Close releases the bundle's database connection.
func (b *Bundle) Close() {
	_ = bunx.Close(b.DB)
}
