// Package policy evaluates attribute-based access-control decisions against
// a mutable, persisted rule set. Rules are data: ordered
// (subject, object, action, environment, effect) tuples where each pattern
// field is a literal or the wildcard "*".
package policy

import (
	_ "embed"
	"fmt"
	"log"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	"github.com/uptrace/bun"

	"github.com/portcullis-auth/portcullis/internal/policy/bunadapter"
	"github.com/portcullis-auth/portcullis/internal/reqctx"
)

//go:embed model.conf
var modelContent string

// Effect values accepted on a rule. An empty effect is normalized to allow.
const (
	EffectAllow = "allow"
	EffectDeny  = "deny"
)

// Wildcard matches any value in a pattern field.
const Wildcard = "*"

// Rule is one policy tuple. Effect deny makes the rule a non-granting
// candidate: the combination strategy is "allow when at least one matching
// rule has effect=allow", so strict deny-overrides must be encoded in rule
// shape rather than relying on special-cased deny handling.
type Rule struct {
	Subject     string `json:"subject"`
	Object      string `json:"object"`
	Action      string `json:"action"`
	Environment string `json:"environment"`
	Effect      string `json:"effect"`
}

func (r Rule) normalized() Rule {
	if r.Effect == "" {
		r.Effect = EffectAllow
	}
	return r
}

func (r Rule) values() []string {
	n := r.normalized()
	return []string{n.Subject, n.Object, n.Action, n.Environment, n.Effect}
}

func ruleFromValues(values []string) Rule {
	var r Rule
	fields := []*string{&r.Subject, &r.Object, &r.Action, &r.Environment, &r.Effect}
	for i, v := range values {
		if i >= len(fields) {
			break
		}
		*fields[i] = v
	}
	return r.normalized()
}

// Stats summarizes the persisted rule set for observability.
type Stats struct {
	Total            int            `json:"total"`
	Allow            int            `json:"allow"`
	Deny             int            `json:"deny"`
	WildcardSubjects int            `json:"wildcard_subjects"`
	BySubject        map[string]int `json:"by_subject"`
	ByObject         map[string]int `json:"by_object"`
}

// Enforcer wraps a synced Casbin enforcer over the bun-backed rule store.
// Reads are safe under concurrent request handling; writes are infrequent
// administrative operations.
type Enforcer struct {
	enforcer casbin.IEnforcer
}

// NewEnforcer creates the enforcer with the embedded model and the shared
// *bun.DB rule store, and loads the persisted rules.
func NewEnforcer(db *bun.DB) (*Enforcer, error) {
	m, err := casbinmodel.NewModelFromString(modelContent)
	if err != nil {
		return nil, fmt.Errorf("parse policy model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, bunadapter.NewAdapter(db))
	if err != nil {
		return nil, fmt.Errorf("create policy enforcer: %w", err)
	}

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load policy rules: %w", err)
	}

	return &Enforcer{enforcer: enforcer}, nil
}

// Check reports whether the context tuple is permitted. Evaluation failures
// (including an unreachable rule store) fail closed: the request is denied
// and the error is logged, never propagated past this method.
func (e *Enforcer) Check(rc reqctx.Context) bool {
	allowed, err := e.enforcer.Enforce(rc.Subject, rc.Object, rc.Action, rc.Environment)
	if err != nil {
		log.Printf("policy check failed closed for %s %s %s %s: %v",
			rc.Subject, rc.Object, rc.Action, rc.Environment, err)
		return false
	}
	return allowed
}

// AddPolicy persists one rule. Returns false when the rule already existed
// (the call is an idempotent no-op).
func (e *Enforcer) AddPolicy(rule Rule) (bool, error) {
	added, err := e.enforcer.AddPolicy(toAnySlice(rule.values())...)
	if err != nil {
		return false, fmt.Errorf("add policy: %w", err)
	}
	return added, nil
}

// RemovePolicy removes one rule. Returns false when the rule did not exist
// (the call is an idempotent no-op).
func (e *Enforcer) RemovePolicy(rule Rule) (bool, error) {
	removed, err := e.enforcer.RemovePolicy(toAnySlice(rule.values())...)
	if err != nil {
		return false, fmt.Errorf("remove policy: %w", err)
	}
	return removed, nil
}

// AddPolicies persists a batch of rules in a single store round trip.
// Casbin batch semantics apply: when any rule already exists, nothing is
// added and false is returned.
func (e *Enforcer) AddPolicies(rules []Rule) (bool, error) {
	added, err := e.enforcer.AddPolicies(rulesToValues(rules))
	if err != nil {
		return false, fmt.Errorf("add policies: %w", err)
	}
	return added, nil
}

// RemovePolicies removes a batch of rules in a single store round trip.
func (e *Enforcer) RemovePolicies(rules []Rule) (bool, error) {
	removed, err := e.enforcer.RemovePolicies(rulesToValues(rules))
	if err != nil {
		return false, fmt.Errorf("remove policies: %w", err)
	}
	return removed, nil
}

// DeleteUser removes every rule whose subject field references the subject.
func (e *Enforcer) DeleteUser(subject string) (bool, error) {
	removed, err := e.enforcer.RemoveFilteredPolicy(0, subject)
	if err != nil {
		return false, fmt.Errorf("delete user policies: %w", err)
	}
	return removed, nil
}

// DeleteRole removes every rule whose subject field references the role
// code. Role codes and account subjects share the subject column, so the
// cascade shape is the same as DeleteUser.
func (e *Enforcer) DeleteRole(role string) (bool, error) {
	removed, err := e.enforcer.RemoveFilteredPolicy(0, role)
	if err != nil {
		return false, fmt.Errorf("delete role policies: %w", err)
	}
	return removed, nil
}

// Rules returns all persisted rules.
func (e *Enforcer) Rules() ([]Rule, error) {
	raw, err := e.enforcer.GetPolicy()
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	rules := make([]Rule, 0, len(raw))
	for _, values := range raw {
		rules = append(rules, ruleFromValues(values))
	}
	return rules, nil
}

// Stats returns rule counts by category.
func (e *Enforcer) Stats() (Stats, error) {
	rules, err := e.Rules()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		BySubject: make(map[string]int),
		ByObject:  make(map[string]int),
	}
	for _, rule := range rules {
		stats.Total++
		switch rule.Effect {
		case EffectDeny:
			stats.Deny++
		default:
			stats.Allow++
		}
		if rule.Subject == Wildcard {
			stats.WildcardSubjects++
		}
		stats.BySubject[rule.Subject]++
		stats.ByObject[rule.Object]++
	}
	return stats, nil
}

func rulesToValues(rules []Rule) [][]string {
	values := make([][]string, 0, len(rules))
	for _, rule := range rules {
		values = append(values, rule.values())
	}
	return values
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
