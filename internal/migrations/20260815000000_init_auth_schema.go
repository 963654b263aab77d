package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/portcullis-auth/portcullis/internal/accounts"
	"github.com/portcullis-auth/portcullis/internal/policy/bunadapter"
)

func init() {
	Migrations.MustRegister(up_20260815000000, down_20260815000000)
}

// up_20260815000000 creates the accounts table and the policy rule store
func up_20260815000000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating accounts table...")
	_, err := db.NewCreateTable().
		Model((*accounts.Account)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_username ON accounts(username)`)
	if err != nil {
		return fmt.Errorf("failed to create accounts username index: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating policy_rules table...")
	_, err = db.NewCreateTable().
		Model((*bunadapter.PolicyRule)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create policy_rules table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_policy_rules_subject ON policy_rules(v0)`)
	if err != nil {
		return fmt.Errorf("failed to create policy_rules subject index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20260815000000 drops the auth schema
func down_20260815000000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping auth tables...")
	if _, err := db.NewDropTable().Model((*bunadapter.PolicyRule)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop policy_rules table: %w", err)
	}
	if _, err := db.NewDropTable().Model((*accounts.Account)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop accounts table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
