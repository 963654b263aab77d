package reqctx

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/v1/orders/42?x=1", "orders"},
		{"/v1/orders", "orders"},
		{"/v2/payments/refund", "payments"},
		{"/accounts/7", "accounts"},
		{"/", "root"},
		{"", "root"},
		{"/v1", "root"},
		{"/v1/", "root"},
		{"//orders", "orders"},
		{"/version/42", "version"}, // not a bare version token
		{"/vx/orders", "vx"},
		{"/?q=1", "root"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectFromPath(tt.path))
		})
	}
}

func TestActionFromMethod(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"GET", "read"},
		{"POST", "create"},
		{"PUT", "update"},
		{"PATCH", "update"},
		{"DELETE", "delete"},
		{"OPTIONS", "options"},
		{"LOCK", "lock"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ActionFromMethod(tt.method), "method %q", tt.method)
	}
}

func TestExtract(t *testing.T) {
	got := Extract("DELETE", "/v1/orders/42?x=1", "alice", "prod")
	assert.Equal(t, Context{
		Subject:     "alice",
		Object:      "orders",
		Action:      "delete",
		Environment: "prod",
	}, got)

	anon := Extract("GET", "/", "", "staging")
	assert.Equal(t, SubjectAnonymous, anon.Subject)
	assert.Equal(t, ObjectRoot, anon.Object)
	assert.Equal(t, "read", anon.Action)
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("DELETE", "http://example.test/v1/orders/42?x=1", nil)
	got := FromRequest(r, "alice", "prod")
	assert.Equal(t, "orders", got.Object)
	assert.Equal(t, "delete", got.Action)
	assert.Equal(t, "alice", got.Subject)
	assert.Equal(t, "prod", got.Environment)
}
