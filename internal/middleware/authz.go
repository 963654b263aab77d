package middleware

import (
	"net/http"

	"github.com/portcullis-auth/portcullis/internal/autherr"
	"github.com/portcullis-auth/portcullis/internal/reqctx"
)

// Checker decides whether a request context is permitted. Satisfied by
// *policy.Enforcer.
type Checker interface {
	Check(reqctx.Context) bool
}

type authzOptions struct {
	skipper        Skipper
	errorResponder ErrorResponder
}

// AuthzOption customises the behaviour of the authorization middleware.
type AuthzOption func(*authzOptions)

// WithAuthzSkipper overrides the default skipper used by the middleware.
func WithAuthzSkipper(skipper Skipper) AuthzOption {
	return func(o *authzOptions) {
		if skipper != nil {
			o.skipper = skipper
		}
	}
}

// WithAuthzErrorResponder overrides the default error responder.
func WithAuthzErrorResponder(responder ErrorResponder) AuthzOption {
	return func(o *authzOptions) {
		if responder != nil {
			o.errorResponder = responder
		}
	}
}

// NewAuthz constructs a chi-compatible middleware that derives the request
// context (subject, object, action, environment) and checks it against the
// rule store. Rules may be keyed by account ID or by role code: the account
// subject is evaluated first, then each of the principal's roles, and a grant
// on any candidate permits the request. Requests without an authenticated
// principal are evaluated with the anonymous subject rather than rejected
// outright, so public objects can be granted by rule.
func NewAuthz(checker Checker, environment string, opts ...AuthzOption) func(http.Handler) http.Handler {
	o := authzOptions{
		skipper:        func(*http.Request) bool { return false },
		errorResponder: defaultErrorResponder,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if o.skipper(r) {
				next.ServeHTTP(w, r)
				return
			}

			subject := reqctx.SubjectAnonymous
			var roles []string
			if principal, ok := GetPrincipal(r.Context()); ok && principal.AccountID != "" {
				subject = principal.AccountID
				roles = principal.Roles
			}

			rc := reqctx.FromRequest(r, subject, environment)
			if !checkSubjects(checker, rc, roles) {
				o.errorResponder(w, r, autherr.AuthorizationDenied("subject is not permitted to perform this action").
					WithDetails(map[string]any{
						"subject": rc.Subject,
						"object":  rc.Object,
						"action":  rc.Action,
					}))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// checkSubjects evaluates the context under the account subject and then
// under each role code the principal carries. The first grant wins.
func checkSubjects(checker Checker, rc reqctx.Context, roles []string) bool {
	if checker.Check(rc) {
		return true
	}
	for _, role := range roles {
		if role == "" || role == rc.Subject {
			continue
		}
		candidate := rc
		candidate.Subject = role
		if checker.Check(candidate) {
			return true
		}
	}
	return false
}
