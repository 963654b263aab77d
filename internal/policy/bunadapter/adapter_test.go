package bunadapter

import (
	"context"
	"database/sql"
	"testing"

	"github.com/casbin/casbin/v2/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

const testModel = `
[request_definition]
r = sub, obj, act, env

[policy_definition]
p = sub, obj, act, env, eft

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (p.sub == "*" || r.sub == p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act) && (p.env == "*" || r.env == p.env)
`

func setupAdapter(t *testing.T) *Adapter {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.NewCreateTable().
		Model((*PolicyRule)(nil)).
		IfNotExists().
		Exec(context.Background())
	require.NoError(t, err)

	return NewAdapter(db)
}

func loadModel(t *testing.T, a *Adapter) model.Model {
	t.Helper()
	m, err := model.NewModelFromString(testModel)
	require.NoError(t, err)
	require.NoError(t, a.LoadPolicy(m))
	return m
}

func TestAdapter_AddAndLoad(t *testing.T) {
	a := setupAdapter(t)

	require.NoError(t, a.AddPolicy("p", "p", []string{"alice", "orders", "read", "prod", "allow"}))
	require.NoError(t, a.AddPolicy("p", "p", []string{"bob", "orders", "read", "*", "deny"}))

	m := loadModel(t, a)
	assert.Len(t, m["p"]["p"].Policy, 2)
	assert.Contains(t, m["p"]["p"].Policy, []string{"alice", "orders", "read", "prod", "allow"})
}

func TestAdapter_AddIsIdempotentAtStoreLevel(t *testing.T) {
	a := setupAdapter(t)
	rule := []string{"alice", "orders", "read", "prod", "allow"}

	require.NoError(t, a.AddPolicy("p", "p", rule))
	// The conflict clause swallows duplicate inserts.
	require.NoError(t, a.AddPolicy("p", "p", rule))

	m := loadModel(t, a)
	assert.Len(t, m["p"]["p"].Policy, 1)
}

func TestAdapter_RemovePolicy(t *testing.T) {
	a := setupAdapter(t)
	rule := []string{"alice", "orders", "read", "prod", "allow"}

	require.NoError(t, a.AddPolicy("p", "p", rule))
	require.NoError(t, a.RemovePolicy("p", "p", rule))

	m := loadModel(t, a)
	assert.Empty(t, m["p"]["p"].Policy)
}

func TestAdapter_RemoveFilteredPolicy(t *testing.T) {
	a := setupAdapter(t)

	require.NoError(t, a.AddPolicies("p", "p", [][]string{
		{"alice", "orders", "read", "prod", "allow"},
		{"alice", "payments", "create", "prod", "allow"},
		{"bob", "orders", "read", "prod", "allow"},
	}))

	// Cascade on the subject column.
	require.NoError(t, a.RemoveFilteredPolicy("p", "p", 0, "alice"))

	m := loadModel(t, a)
	require.Len(t, m["p"]["p"].Policy, 1)
	assert.Equal(t, "bob", m["p"]["p"].Policy[0][0])

	// Out-of-range filter columns are rejected.
	err := a.RemoveFilteredPolicy("p", "p", 4, "x", "y")
	assert.Error(t, err)
}

func TestAdapter_SavePolicyReplacesStore(t *testing.T) {
	a := setupAdapter(t)

	require.NoError(t, a.AddPolicy("p", "p", []string{"stale", "orders", "read", "prod", "allow"}))

	m, err := model.NewModelFromString(testModel)
	require.NoError(t, err)
	_ = m.AddPolicy("p", "p", []string{"fresh", "orders", "read", "prod", "allow"})

	require.NoError(t, a.SavePolicy(m))

	reloaded := loadModel(t, a)
	require.Len(t, reloaded["p"]["p"].Policy, 1)
	assert.Equal(t, "fresh", reloaded["p"]["p"].Policy[0][0])
}
