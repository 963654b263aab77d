package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/portcullis-auth/portcullis/internal/policy"
)

func decodeRule(r *http.Request) (policy.Rule, string) {
	var rule policy.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		return rule, "invalid request body"
	}
	return rule, validateRule(rule)
}

func decodeRules(r *http.Request) ([]policy.Rule, string) {
	var rules []policy.Rule
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		return nil, "invalid request body"
	}
	if len(rules) == 0 {
		return nil, "at least one rule is required"
	}
	for _, rule := range rules {
		if msg := validateRule(rule); msg != "" {
			return nil, msg
		}
	}
	return rules, ""
}

func validateRule(rule policy.Rule) string {
	if rule.Subject == "" || rule.Object == "" || rule.Action == "" || rule.Environment == "" {
		return "subject, object, action, and environment are required"
	}
	switch rule.Effect {
	case "", policy.EffectAllow, policy.EffectDeny:
		return ""
	default:
		return "effect must be allow or deny"
	}
}

// HandleListPolicies handles GET /v1/policies.
func HandleListPolicies(enforcer *policy.Enforcer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := enforcer.Rules()
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
	}
}

// HandleAddPolicy handles POST /v1/policies. Adding a rule that already
// exists is a no-op reported as changed=false.
func HandleAddPolicy(enforcer *policy.Enforcer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rule, msg := decodeRule(r)
		if msg != "" {
			badRequest(w, msg)
			return
		}
		added, err := enforcer.AddPolicy(rule)
		if err != nil {
			respondError(w, err)
			return
		}
		status := http.StatusOK
		if added {
			status = http.StatusCreated
		}
		writeJSON(w, status, map[string]bool{"changed": added})
	}
}

// HandleRemovePolicy handles DELETE /v1/policies.
func HandleRemovePolicy(enforcer *policy.Enforcer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rule, msg := decodeRule(r)
		if msg != "" {
			badRequest(w, msg)
			return
		}
		removed, err := enforcer.RemovePolicy(rule)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"changed": removed})
	}
}

// HandleAddPolicies handles POST /v1/policies/batch. The batch is atomic:
// when any rule in it already exists, nothing is added.
func HandleAddPolicies(enforcer *policy.Enforcer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, msg := decodeRules(r)
		if msg != "" {
			badRequest(w, msg)
			return
		}
		added, err := enforcer.AddPolicies(rules)
		if err != nil {
			respondError(w, err)
			return
		}
		status := http.StatusOK
		if added {
			status = http.StatusCreated
		}
		writeJSON(w, status, map[string]bool{"changed": added})
	}
}

// HandleRemovePolicies handles DELETE /v1/policies/batch.
func HandleRemovePolicies(enforcer *policy.Enforcer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, msg := decodeRules(r)
		if msg != "" {
			badRequest(w, msg)
			return
		}
		removed, err := enforcer.RemovePolicies(rules)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"changed": removed})
	}
}

// HandleDeleteSubject handles DELETE /v1/policies/subjects/{subject},
// cascading over every rule the subject appears in.
func HandleDeleteSubject(enforcer *policy.Enforcer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := chi.URLParam(r, "subject")
		if subject == "" {
			badRequest(w, "subject is required")
			return
		}
		removed, err := enforcer.DeleteUser(subject)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"changed": removed})
	}
}

// HandleDeleteRole handles DELETE /v1/policies/roles/{role}.
func HandleDeleteRole(enforcer *policy.Enforcer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := chi.URLParam(r, "role")
		if role == "" {
			badRequest(w, "role is required")
			return
		}
		removed, err := enforcer.DeleteRole(role)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"changed": removed})
	}
}

// HandlePolicyStats handles GET /v1/policies/stats.
func HandlePolicyStats(enforcer *policy.Enforcer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := enforcer.Stats()
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
