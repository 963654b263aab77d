package accounts

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// RoleList stores an account's role codes as a JSON array so the same model
// works on Postgres and SQLite.
type RoleList []string

// Scan implements sql.Scanner for reading from database
func (rl *RoleList) Scan(value any) error {
	if value == nil {
		*rl = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan RoleList: expected []byte or string, got %T", value)
	}
	if len(bytes) == 0 {
		*rl = nil
		return nil
	}
	return json.Unmarshal(bytes, rl)
}

// Value implements driver.Valuer for writing to database
func (rl RoleList) Value() (driver.Value, error) {
	if rl == nil {
		return "[]", nil
	}
	bytes, err := json.Marshal(rl)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Account represents a login-capable principal of the surrounding business
// services. SessionHandle is the current-session pointer: at most one handle
// is current per account, and issuing a new one replaces it as the pointer of
// record without revoking the previously cached credential.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID            string    `bun:"id,pk,type:uuid"`
	Username      string    `bun:"username,notnull,unique"`
	DisplayName   string    `bun:"display_name"`
	Roles         RoleList  `bun:"roles,type:jsonb,notnull,default:'[]'"`
	SessionHandle string    `bun:"session_handle"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
