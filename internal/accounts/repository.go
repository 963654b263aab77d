package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrNotFound is returned when no account matches the lookup.
var ErrNotFound = errors.New("account not found")

// Repository is the account persistence boundary consumed by the session
// cache and the auth handlers.
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	UpdateSessionHandle(ctx context.Context, accountID, handle string) error
	ClearSessionHandle(ctx context.Context, accountID string) error
}

// BunAccountRepository implements Repository using Bun ORM
type BunAccountRepository struct {
	db *bun.DB
}

// NewBunAccountRepository creates a new Bun-based account repository
func NewBunAccountRepository(db *bun.DB) *BunAccountRepository {
	return &BunAccountRepository{db: db}
}

// Create inserts a new account, assigning an ID when absent
func (r *BunAccountRepository) Create(ctx context.Context, account *Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(account).Exec(ctx); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by ID
func (r *BunAccountRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	account := new(Account)
	err := r.db.NewSelect().
		Model(account).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// GetByUsername retrieves an account by its unique username
func (r *BunAccountRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	account := new(Account)
	err := r.db.NewSelect().
		Model(account).
		Where("username = ?", username).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account by username: %w", err)
	}
	return account, nil
}

// UpdateSessionHandle points the account at a new current session handle.
// The previous handle stops being the pointer of record but its cached
// credential stays valid until its own expiry.
func (r *BunAccountRepository) UpdateSessionHandle(ctx context.Context, accountID, handle string) error {
	res, err := r.db.NewUpdate().
		Model((*Account)(nil)).
		Set("session_handle = ?", handle).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update session handle: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearSessionHandle removes the current session pointer (logout).
func (r *BunAccountRepository) ClearSessionHandle(ctx context.Context, accountID string) error {
	return r.UpdateSessionHandle(ctx, accountID, "")
}
