// Package session caches issued credentials under opaque session handles so
// repeated logins for the same account reuse the credential instead of
// minting a fresh one on every attempt.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/portcullis-auth/portcullis/internal/accounts"
	"github.com/portcullis-auth/portcullis/internal/autherr"
	"github.com/portcullis-auth/portcullis/internal/credential"
)

// ErrNotFound is returned when no cache entry exists for a handle.
var ErrNotFound = errors.New("session entry not found")

// DefaultKeyPrefix namespaces session keys in the shared key-value store.
const DefaultKeyPrefix = "pcl:sess"

// Entry is the cached value stored under a session handle. Entries are never
// mutated in place, only replaced.
type Entry struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// AccountStore is the slice of the account repository the cache needs to
// maintain the current-session pointer.
type AccountStore interface {
	UpdateSessionHandle(ctx context.Context, accountID, handle string) error
}

// Cache maps opaque session handles to cached credentials with a
// store-enforced TTL equal to the credential lifetime.
type Cache struct {
	redis    redis.UniversalClient
	codec    *credential.Codec
	accounts AccountStore
	prefix   string
}

// NewCache creates a Cache backed by the given Redis client.
func NewCache(rdb redis.UniversalClient, codec *credential.Codec, accountStore AccountStore, prefix string) *Cache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Cache{
		redis:    rdb,
		codec:    codec,
		accounts: accountStore,
		prefix:   prefix,
	}
}

func (c *Cache) key(handle string) string {
	return c.prefix + ":" + handle
}

// GetOrCreate implements cache-aside with idempotent reuse: when the
// account's session pointer names a live cache entry the cached pair is
// returned unchanged; otherwise a new handle is minted, the credential is
// signed with the account's current identity snapshot, cached with a TTL
// equal to the credential lifetime, and the account pointer is updated.
//
// CONSISTENCY NOTE: the account-pointer read and cache-entry read hit two
// different stores and are not wrapped in a cross-store transaction.
// Concurrent logins for the same account may each decide "no valid cached
// session" and each mint a credential; the last pointer update wins and the
// earlier credential remains valid (and independently cached) until its own
// expiry. This availability-over-single-session trade-off is deliberate.
func (c *Cache) GetOrCreate(ctx context.Context, account *accounts.Account) (*Entry, string, error) {
	if account.SessionHandle != "" {
		entry, err := c.Get(ctx, account.SessionHandle)
		switch {
		case err == nil:
			return entry, account.SessionHandle, nil
		case errors.Is(err, ErrNotFound):
			// Entry expired or was invalidated; mint a new credential below.
		default:
			return nil, "", err
		}
	}

	handle := NewHandle()
	token, expiresAt, err := c.codec.Sign(credential.Payload{
		ID:       account.ID,
		Username: account.Username,
		Roles:    account.Roles,
	})
	if err != nil {
		return nil, "", err
	}

	entry := &Entry{Token: token, ExpiresAt: expiresAt}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, "", fmt.Errorf("encode session entry: %w", err)
	}

	if err := c.redis.Set(ctx, c.key(handle), data, c.codec.Lifetime()).Err(); err != nil {
		return nil, "", autherr.StoreUnavailable("session cache write failed", err)
	}

	if err := c.accounts.UpdateSessionHandle(ctx, account.ID, handle); err != nil {
		return nil, "", autherr.StoreUnavailable("session pointer update failed", err)
	}
	account.SessionHandle = handle

	return entry, handle, nil
}

// Get retrieves the cached entry for a handle.
func (c *Cache) Get(ctx context.Context, handle string) (*Entry, error) {
	data, err := c.redis.Get(ctx, c.key(handle)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, autherr.StoreUnavailable("session cache read failed", err)
	}

	entry := new(Entry)
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, fmt.Errorf("decode session entry: %w", err)
	}
	return entry, nil
}

// Delete removes the cached entry for a handle. Deleting a nonexistent
// handle is a no-op.
func (c *Cache) Delete(ctx context.Context, handle string) error {
	if err := c.redis.Del(ctx, c.key(handle)).Err(); err != nil {
		return autherr.StoreUnavailable("session cache delete failed", err)
	}
	return nil
}

// Exists reports whether a cache entry is present for a handle.
func (c *Cache) Exists(ctx context.Context, handle string) (bool, error) {
	n, err := c.redis.Exists(ctx, c.key(handle)).Result()
	if err != nil {
		return false, autherr.StoreUnavailable("session cache lookup failed", err)
	}
	return n > 0, nil
}

// NewHandle mints an opaque session handle.
func NewHandle() string {
	return uuid.NewString()
}
