// Package bunadapter persists Casbin policy rules through an existing
// *bun.DB connection pool, so the rule store shares the service's database.
package bunadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2/model"
	"github.com/uptrace/bun"
)

// Adapter implements casbin/persist.Adapter and persist.BatchAdapter on top
// of a policy_rules table with one row per rule tuple.
type Adapter struct {
	db *bun.DB
}

// NewAdapter creates an Adapter using bun's database connection.
// The policy_rules table must already exist (created by migrations).
func NewAdapter(db *bun.DB) *Adapter {
	return &Adapter{db: db}
}

// PolicyRule is one persisted rule tuple. v0..v4 hold
// (subject, object, action, environment, effect); grouping rows use the
// same columns under ptype "g".
type PolicyRule struct {
	bun.BaseModel `bun:"table:policy_rules,alias:pr"`

	Ptype string `bun:",pk,type:varchar(16),notnull"`
	V0    string `bun:",pk,type:varchar(255)"`
	V1    string `bun:",pk,type:varchar(255)"`
	V2    string `bun:",pk,type:varchar(255)"`
	V3    string `bun:",pk,type:varchar(255)"`
	V4    string `bun:",pk,type:varchar(255)"`
}

func newPolicyRule(ptype string, values []string) *PolicyRule {
	row := &PolicyRule{Ptype: ptype}
	fields := []*string{&row.V0, &row.V1, &row.V2, &row.V3, &row.V4}
	for i, v := range values {
		if i >= len(fields) {
			break
		}
		*fields[i] = v
	}
	return row
}

func (r *PolicyRule) values() []string {
	return []string{r.V0, r.V1, r.V2, r.V3, r.V4}
}

// lastNonEmpty returns the index of the last populated value column, or -1
// for an empty row.
func (r *PolicyRule) lastNonEmpty() int {
	values := r.values()
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] != "" {
			return i
		}
	}
	return -1
}

// whereRule extends the query builder with an OR group matching every
// populated column of the row.
func (r *PolicyRule) whereRule(q bun.QueryBuilder) bun.QueryBuilder {
	q.WhereGroup("OR", func(q bun.QueryBuilder) bun.QueryBuilder {
		q = q.Where("ptype = ?", r.Ptype)
		for i, v := range r.values() {
			if v != "" {
				q = q.Where(fmt.Sprintf("v%d = ?", i), v)
			}
		}
		return q
	})
	return q
}

// LoadPolicy loads all rules from the database into the Casbin model.
func (a *Adapter) LoadPolicy(m model.Model) error {
	var rows []*PolicyRule
	if err := a.db.NewSelect().Model(&rows).Scan(context.Background()); err != nil {
		return fmt.Errorf("load policy rules: %w", err)
	}

	for _, row := range rows {
		last := row.lastNonEmpty()
		if last == -1 {
			continue
		}
		sec := row.Ptype
		if len(sec) > 1 {
			sec = sec[:1]
		}
		if !strings.ContainsAny(sec, "pg") {
			continue
		}
		_ = m.AddPolicy(sec, row.Ptype, row.values()[:last+1])
	}

	return nil
}

// SavePolicy replaces all persisted rules with the model's current rules.
func (a *Adapter) SavePolicy(m model.Model) error {
	var rows []*PolicyRule
	for _, sec := range []string{"p", "g"} {
		for ptype, assertion := range m[sec] {
			for _, rule := range assertion.Policy {
				rows = append(rows, newPolicyRule(ptype, rule))
			}
		}
	}

	err := a.db.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*PolicyRule)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return err
		}
		for _, row := range rows {
			if _, err := tx.NewInsert().Model(row).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save policy rules: %w", err)
	}
	return nil
}

// AddPolicy persists a single rule.
func (a *Adapter) AddPolicy(_ string, ptype string, rule []string) error {
	return a.insert(newPolicyRule(ptype, rule))
}

// AddPolicies persists a batch of rules in one transaction.
func (a *Adapter) AddPolicies(_ string, ptype string, rules [][]string) error {
	rows := make([]*PolicyRule, 0, len(rules))
	for _, rule := range rules {
		rows = append(rows, newPolicyRule(ptype, rule))
	}

	err := a.db.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		for _, row := range rows {
			if _, err := tx.NewInsert().Model(row).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("add policy rules: %w", err)
	}
	return nil
}

// RemovePolicy deletes a single rule.
func (a *Adapter) RemovePolicy(_ string, ptype string, rule []string) error {
	return a.delete(newPolicyRule(ptype, rule))
}

// RemovePolicies deletes a batch of rules in one round trip.
func (a *Adapter) RemovePolicies(_ string, ptype string, rules [][]string) error {
	rows := make([]*PolicyRule, 0, len(rules))
	for _, rule := range rules {
		rows = append(rows, newPolicyRule(ptype, rule))
	}
	return a.delete(rows...)
}

// RemoveFilteredPolicy deletes every rule whose columns match the filter,
// starting at fieldIndex. Used for cascading subject/role removal.
func (a *Adapter) RemoveFilteredPolicy(_ string, ptype string, fieldIndex int, fieldValues ...string) error {
	query := a.db.NewDelete().Model((*PolicyRule)(nil)).Where("ptype = ?", ptype)

	for i, v := range fieldValues {
		if v == "" {
			continue
		}
		col := fieldIndex + i
		if col > 4 {
			return fmt.Errorf("policy filter column out of range: %d", col)
		}
		query = query.Where(fmt.Sprintf("v%d = ?", col), v)
	}

	if _, err := query.Exec(context.Background()); err != nil {
		return fmt.Errorf("remove filtered policy rules: %w", err)
	}
	return nil
}

func (a *Adapter) insert(row *PolicyRule) error {
	if _, err := a.db.NewInsert().Model(row).On("CONFLICT DO NOTHING").Exec(context.Background()); err != nil {
		return fmt.Errorf("add policy rule: %w", err)
	}
	return nil
}

func (a *Adapter) delete(rows ...*PolicyRule) error {
	if len(rows) == 0 {
		return nil
	}

	query := a.db.NewDelete().Model((*PolicyRule)(nil))
	query.QueryBuilder().WhereGroup("AND", func(q bun.QueryBuilder) bun.QueryBuilder {
		return q.WhereGroup("OR", func(q bun.QueryBuilder) bun.QueryBuilder {
			for _, row := range rows {
				row.whereRule(q)
			}
			return q
		})
	})

	if _, err := query.Exec(context.Background()); err != nil {
		return fmt.Errorf("remove policy rules: %w", err)
	}
	return nil
}
