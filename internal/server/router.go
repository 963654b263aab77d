// Package server assembles the HTTP surface: the chi router, the
// authentication and authorization middleware chain, and the handlers for
// login, logout, whoami, and policy administration.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/portcullis-auth/portcullis/internal/accounts"
	"github.com/portcullis-auth/portcullis/internal/config"
	"github.com/portcullis-auth/portcullis/internal/credential"
	"github.com/portcullis-auth/portcullis/internal/middleware"
	"github.com/portcullis-auth/portcullis/internal/policy"
	"github.com/portcullis-auth/portcullis/internal/session"
)

// RouterOptions controls the construction of the HTTP router.
// Codec, Sessions, Accounts, Enforcer, and Cfg are required; the rest have
// sensible defaults.
type RouterOptions struct {
	Codec       *credential.Codec
	Sessions    *session.Cache
	Accounts    accounts.Repository
	Enforcer    *policy.Enforcer
	Cfg         *config.Config
	CORSOptions *cors.Options
	Middleware  []func(http.Handler) http.Handler
	ExtraRoutes func(chi.Router)
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with the shared middleware chain and the
// auth and policy-administration handlers mounted. Requests to public
// prefixes skip both authentication and authorization; everything else must
// present a verifiable bearer token and pass a policy check.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	skipper := middleware.PrefixSkipper(opts.Cfg.PublicPrefixes)
	r.Use(middleware.NewAuthn(opts.Codec, middleware.WithSkipper(skipper)))
	r.Use(middleware.NewAuthz(opts.Enforcer, opts.Cfg.Environment, middleware.WithAuthzSkipper(skipper)))

	r.Get("/healthz", healthHandler)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/login", HandleLogin(opts.Accounts, opts.Sessions))
		r.Post("/logout", HandleLogout(opts.Accounts, opts.Sessions))
		r.Get("/whoami", HandleWhoAmI(opts.Accounts, opts.Sessions))
	})

	r.Route("/v1/policies", func(r chi.Router) {
		r.Get("/", HandleListPolicies(opts.Enforcer))
		r.Post("/", HandleAddPolicy(opts.Enforcer))
		r.Delete("/", HandleRemovePolicy(opts.Enforcer))
		r.Post("/batch", HandleAddPolicies(opts.Enforcer))
		r.Delete("/batch", HandleRemovePolicies(opts.Enforcer))
		r.Delete("/subjects/{subject}", HandleDeleteSubject(opts.Enforcer))
		r.Delete("/roles/{role}", HandleDeleteRole(opts.Enforcer))
		r.Get("/stats", HandlePolicyStats(opts.Enforcer))
	})

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r
}
