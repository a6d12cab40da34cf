package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const violationQuery = "data.swadharma.household.violation"

// householdPolicy yields the first violated rule code for the input, in priority order.
const householdPolicy = `package swadharma.household

default violation := ""

member_only := {"view", "list_invites"}

head_only := {"invite", "update_role", "remove_member", "transfer_head", "update_household"}

invitable := {"ADULT", "CHILD"}

violation := "ACCESS_DENIED" if {
	member_only[input.action]
	not input.caller.is_member
} else := "ACCESS_DENIED" if {
	head_only[input.action]
	not input.caller.is_head
} else := "USE_TRANSFER" if {
	input.action == "update_role"
	input.new_role == "HEAD"
} else := "INVALID_ROLE" if {
	input.action in {"invite", "update_role"}
	not invitable[input.new_role]
} else := "CANNOT_REMOVE_SELF" if {
	input.action == "remove_member"
	input.target.id == input.caller.id
} else := "NOT_A_MEMBER" if {
	input.action in {"update_role", "remove_member", "transfer_head"}
	not input.target.is_member
} else := "USE_TRANSFER" if {
	input.action == "update_role"
	input.target.role == "HEAD"
} else := "CANNOT_BE_HEAD" if {
	input.action == "transfer_head"
	input.target.role == "CHILD"
} else := "ALREADY_HEAD" if {
	input.action == "transfer_head"
	input.target.role == "HEAD"
} else := "ALREADY_HEAD" if {
	input.action == "transfer_head"
	input.target.heads_any
} else := "NOT_A_MEMBER" if {
	input.action == "leave"
	not input.caller.is_member
} else := "HEAD_CANNOT_LEAVE" if {
	input.action == "leave"
	input.caller.is_head
} else := "ALREADY_HEAD" if {
	input.action == "create"
	input.caller.heads_any
}
`

// OPAEvaluator evaluates the household policy with an in-process OPA query prepared once.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the household policy.
func NewOPAEvaluator(ctx context.Context) (*OPAEvaluator, error) {
	compiler, err := ast.CompileModules(map[string]string{"household.rego": householdPolicy})
	if err != nil {
		return nil, fmt.Errorf("compile household policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(violationQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare household policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// Check evaluates f and returns the violated rule code, or "" when allowed.
func (e *OPAEvaluator) Check(ctx context.Context, f Facts) (string, error) {
	input, err := toInput(f)
	if err != nil {
		return "", err
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("eval household policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return "", fmt.Errorf("household policy returned no result")
	}
	v, ok := rs[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("household policy returned %T", rs[0].Expressions[0].Value)
	}
	return v, nil
}

// HealthCheck evaluates a known-allowed input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	v, err := e.Check(ctx, Facts{Action: ActionView, Caller: Party{ID: "probe", IsMember: true}})
	if err != nil {
		return err
	}
	if v != "" {
		return fmt.Errorf("household policy probe denied: %s", v)
	}
	return nil
}

func toInput(f Facts) (map[string]any, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

var _ Evaluator = (*OPAEvaluator)(nil)
