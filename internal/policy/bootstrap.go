package policy

import "fmt"

// bootstrapRules is the fixed rule set seeded into an empty store. It grants
// operators full access, lets authenticated roles reach their own business
// objects, and keeps everything else default-denied.
var bootstrapRules = []Rule{
	{Subject: "admin", Object: Wildcard, Action: Wildcard, Environment: Wildcard, Effect: EffectAllow},
	{Subject: "support", Object: "accounts", Action: "read", Environment: Wildcard, Effect: EffectAllow},
	{Subject: "support", Object: "orders", Action: "read", Environment: Wildcard, Effect: EffectAllow},
	{Subject: "merchant", Object: "products", Action: Wildcard, Environment: Wildcard, Effect: EffectAllow},
	{Subject: "merchant", Object: "orders", Action: "read", Environment: Wildcard, Effect: EffectAllow},
	{Subject: "buyer", Object: "orders", Action: "create", Environment: Wildcard, Effect: EffectAllow},
	{Subject: "buyer", Object: "orders", Action: "read", Environment: Wildcard, Effect: EffectAllow},
	{Subject: "buyer", Object: "payments", Action: "create", Environment: Wildcard, Effect: EffectAllow},
	{Subject: "anonymous", Object: "root", Action: "read", Environment: Wildcard, Effect: EffectAllow},
}

// Bootstrap seeds the built-in rule set when, and only when, the store holds
// zero rules. It is a startup-time initialization step: seeding is not safe
// to repeat against a non-empty store, so the emptiness check gates it here
// rather than at every call site. Returns whether seeding happened.
func (e *Enforcer) Bootstrap() (bool, error) {
	existing, err := e.Rules()
	if err != nil {
		return false, fmt.Errorf("bootstrap emptiness check: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	if _, err := e.AddPolicies(bootstrapRules); err != nil {
		return false, fmt.Errorf("seed bootstrap rules: %w", err)
	}
	return true, nil
}
