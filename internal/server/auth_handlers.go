package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/portcullis-auth/portcullis/internal/accounts"
	"github.com/portcullis-auth/portcullis/internal/autherr"
	"github.com/portcullis-auth/portcullis/internal/middleware"
	"github.com/portcullis-auth/portcullis/internal/session"
)

// LoginRequest carries the identity to issue a credential for. Identity
// proofing (password, SSO, MFA) happens upstream at the gateway; this
// service exchanges an already-authenticated username for a signed
// credential and a session handle.
type LoginRequest struct {
	Username string `json:"username"`
}

// AccountResponse represents account data in API responses.
type AccountResponse struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name,omitempty"`
	Roles       []string `json:"roles"`
}

// LoginResponse is the body returned by POST /v1/auth/login.
type LoginResponse struct {
	Handle    string          `json:"handle"`
	Token     string          `json:"token"`
	ExpiresAt int64           `json:"expires_at"`
	Account   AccountResponse `json:"account"`
}

func accountResponse(account *accounts.Account) AccountResponse {
	roles := account.Roles
	if roles == nil {
		roles = []string{}
	}
	return AccountResponse{
		ID:          account.ID,
		Username:    account.Username,
		DisplayName: account.DisplayName,
		Roles:       roles,
	}
}

// HandleLogin exchanges a username for a credential. Repeated logins while
// the account's cached session is live return the identical token.
func HandleLogin(repo accounts.Repository, sessions *session.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
		if req.Username == "" {
			badRequest(w, "username is required")
			return
		}

		account, err := repo.GetByUsername(r.Context(), req.Username)
		if err != nil {
			if errors.Is(err, accounts.ErrNotFound) {
				middleware.WriteError(w, autherr.InvalidCredential(
					autherr.CodeTokenVerification, "unknown account"))
				return
			}
			respondError(w, err)
			return
		}

		entry, handle, err := sessions.GetOrCreate(r.Context(), account)
		if err != nil {
			respondError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{
			Handle:    handle,
			Token:     entry.Token,
			ExpiresAt: entry.ExpiresAt,
			Account:   accountResponse(account),
		})
	}
}

// HandleLogout drops the caller's cached session entry and clears the
// account's session pointer. Logging out twice is a no-op.
func HandleLogout(repo accounts.Repository, sessions *session.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			middleware.WriteError(w, autherr.InvalidCredential(
				autherr.CodeMissingAuthToken, "no active session"))
			return
		}

		account, err := repo.GetByID(r.Context(), principal.AccountID)
		if err != nil {
			if errors.Is(err, accounts.ErrNotFound) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			respondError(w, err)
			return
		}

		if account.SessionHandle != "" {
			if err := sessions.Delete(r.Context(), account.SessionHandle); err != nil {
				respondError(w, err)
				return
			}
			if err := repo.ClearSessionHandle(r.Context(), account.ID); err != nil {
				respondError(w, err)
				return
			}
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// WhoAmIResponse is the body returned by GET /v1/auth/whoami.
type WhoAmIResponse struct {
	Account   AccountResponse `json:"account"`
	Handle    string          `json:"handle,omitempty"`
	ExpiresAt int64           `json:"expires_at,omitempty"`
}

// HandleWhoAmI returns the authenticated account and its current session
// metadata.
func HandleWhoAmI(repo accounts.Repository, sessions *session.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			middleware.WriteError(w, autherr.InvalidCredential(
				autherr.CodeMissingAuthToken, "no active session"))
			return
		}

		account, err := repo.GetByID(r.Context(), principal.AccountID)
		if err != nil {
			respondError(w, err)
			return
		}

		resp := WhoAmIResponse{Account: accountResponse(account)}
		if account.SessionHandle != "" {
			entry, err := sessions.Get(r.Context(), account.SessionHandle)
			switch {
			case err == nil:
				resp.Handle = account.SessionHandle
				resp.ExpiresAt = entry.ExpiresAt
			case errors.Is(err, session.ErrNotFound):
				// Pointer is stale; report the account without session metadata.
			default:
				respondError(w, err)
				return
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
