package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/portcullis-auth/portcullis/internal/accounts"
	"github.com/portcullis-auth/portcullis/internal/autherr"
	"github.com/portcullis-auth/portcullis/internal/config"
	"github.com/portcullis-auth/portcullis/internal/credential"
	"github.com/portcullis-auth/portcullis/internal/policy"
	"github.com/portcullis-auth/portcullis/internal/policy/bunadapter"
	"github.com/portcullis-auth/portcullis/internal/session"
)

type testEnv struct {
	router   http.Handler
	repo     accounts.Repository
	enforcer *policy.Enforcer
	mr       *miniredis.Miniredis
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = db.NewCreateTable().Model((*accounts.Account)(nil)).IfNotExists().Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewCreateTable().Model((*bunadapter.PolicyRule)(nil)).IfNotExists().Exec(ctx)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	codec, err := credential.NewCodec([]byte("router-test-secret"), time.Hour)
	require.NoError(t, err)

	repo := accounts.NewBunAccountRepository(db)
	cache := session.NewCache(rdb, codec, repo, "")

	enforcer, err := policy.NewEnforcer(db)
	require.NoError(t, err)

	cfg := &config.Config{
		Environment:    "test",
		PublicPrefixes: []string{"/healthz", "/v1/auth/login"},
	}

	router := NewRouter(RouterOptions{
		Codec:    codec,
		Sessions: cache,
		Accounts: repo,
		Enforcer: enforcer,
		Cfg:      cfg,
	})

	return &testEnv{router: router, repo: repo, enforcer: enforcer, mr: mr}
}

func (e *testEnv) createAccount(t *testing.T, username string, roles []string) *accounts.Account {
	t.Helper()
	account := &accounts.Account{Username: username, Roles: roles}
	require.NoError(t, e.repo.Create(context.Background(), account))
	return account
}

func (e *testEnv) allow(t *testing.T, subject, object, action string) {
	t.Helper()
	_, err := e.enforcer.AddPolicy(policy.Rule{
		Subject: subject, Object: object, Action: action, Environment: policy.Wildcard,
	})
	require.NoError(t, err)
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username string) LoginResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/auth/login", "", LoginRequest{Username: username})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestRouter_HealthIsPublic(t *testing.T) {
	env := setupEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_LoginIssuesAndReusesCredential(t *testing.T) {
	env := setupEnv(t)
	env.createAccount(t, "alice", []string{"buyer"})

	first := env.login(t, "alice")
	assert.NotEmpty(t, first.Token)
	assert.NotEmpty(t, first.Handle)
	assert.Equal(t, "alice", first.Account.Username)
	assert.Equal(t, []string{"buyer"}, first.Account.Roles)

	// A second login while the session is live returns the same pair.
	second := env.login(t, "alice")
	assert.Equal(t, first.Token, second.Token)
	assert.Equal(t, first.Handle, second.Handle)
	assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
}

func TestRouter_LoginUnknownAccount(t *testing.T) {
	env := setupEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/auth/login", "", LoginRequest{Username: "ghost"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_ProtectedRouteRequiresToken(t *testing.T) {
	env := setupEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/auth/whoami", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, autherr.CodeMissingAuthToken, body.Code)
}

func TestRouter_WhoAmI(t *testing.T) {
	env := setupEnv(t)
	account := env.createAccount(t, "alice", []string{"buyer"})
	env.allow(t, account.ID, "auth", policy.Wildcard)

	login := env.login(t, "alice")

	rec := env.do(t, http.MethodGet, "/v1/auth/whoami", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp WhoAmIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, account.ID, resp.Account.ID)
	assert.Equal(t, login.Handle, resp.Handle)
	assert.Equal(t, login.ExpiresAt, resp.ExpiresAt)
}

func TestRouter_RoleKeyedRuleAuthorizes(t *testing.T) {
	env := setupEnv(t)
	account := env.createAccount(t, "alice", []string{"buyer"})
	// The rule is keyed by role code, not account ID, matching the shape of
	// the seeded bootstrap set.
	env.allow(t, "buyer", "auth", policy.Wildcard)

	login := env.login(t, "alice")

	rec := env.do(t, http.MethodGet, "/v1/auth/whoami", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp WhoAmIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, account.ID, resp.Account.ID)
}

func TestRouter_DeniedWithoutMatchingRule(t *testing.T) {
	env := setupEnv(t)
	env.createAccount(t, "alice", nil)

	login := env.login(t, "alice")

	rec := env.do(t, http.MethodGet, "/v1/auth/whoami", login.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, autherr.CodeAuthorizationDenied, body.Code)
}

func TestRouter_LogoutDropsSession(t *testing.T) {
	env := setupEnv(t)
	account := env.createAccount(t, "alice", nil)
	env.allow(t, account.ID, "auth", policy.Wildcard)

	first := env.login(t, "alice")

	rec := env.do(t, http.MethodPost, "/v1/auth/logout", first.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Logging out twice is a no-op.
	rec = env.do(t, http.MethodPost, "/v1/auth/logout", first.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// The next login mints a fresh session handle.
	second := env.login(t, "alice")
	assert.NotEqual(t, first.Handle, second.Handle)
}

func TestRouter_PolicyAdministration(t *testing.T) {
	env := setupEnv(t)
	admin := env.createAccount(t, "root", []string{"admin"})
	env.allow(t, admin.ID, policy.Wildcard, policy.Wildcard)

	login := env.login(t, "root")
	rule := policy.Rule{Subject: "buyer", Object: "orders", Action: "create", Environment: "*", Effect: "allow"}

	// Create.
	rec := env.do(t, http.MethodPost, "/v1/policies/", login.Token, rule)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Re-create is reported unchanged.
	rec = env.do(t, http.MethodPost, "/v1/policies/", login.Token, rule)
	assert.Equal(t, http.StatusOK, rec.Code)

	// List includes the seeded admin rule and the new one.
	rec = env.do(t, http.MethodGet, "/v1/policies/", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Rules []policy.Rule `json:"rules"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listResp))
	assert.Len(t, listResp.Rules, 2)

	// Stats.
	rec = env.do(t, http.MethodGet, "/v1/policies/stats", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats policy.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Total)

	// Cascade delete by subject.
	rec = env.do(t, http.MethodDelete, "/v1/policies/subjects/buyer", login.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/policies/", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listResp.Rules = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listResp))
	assert.Len(t, listResp.Rules, 1)
}

func TestRouter_PolicyValidation(t *testing.T) {
	env := setupEnv(t)
	admin := env.createAccount(t, "root", nil)
	env.allow(t, admin.ID, policy.Wildcard, policy.Wildcard)
	login := env.login(t, "root")

	// Missing fields.
	rec := env.do(t, http.MethodPost, "/v1/policies/", login.Token, policy.Rule{Subject: "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Bad effect.
	rec = env.do(t, http.MethodPost, "/v1/policies/", login.Token,
		policy.Rule{Subject: "a", Object: "b", Action: "c", Environment: "d", Effect: "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Empty batch.
	rec = env.do(t, http.MethodPost, "/v1/policies/batch", login.Token, []policy.Rule{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
