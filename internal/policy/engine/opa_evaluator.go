package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	accesscodedomain "github.com/hungle-ag/task-manager-server/internal/accesscode/domain"
	userdomain "github.com/hungle-ag/task-manager-server/internal/user/domain"
)

const bindingQuery = "data.taskmanager.auth.binding"

// DefaultRegoPolicy matches StaticBinding. A custom policy must define data.taskmanager.auth.binding
// as an object {"role": string, "provision": bool} and may not change the role or provisioning of a channel.
const DefaultRegoPolicy = `package taskmanager.auth

default role := ""

role := "staff" if input.channel == "email"

role := "supervisor" if input.channel == "sms"

default provision := false

provision if role == "supervisor"

binding := {"role": role, "provision": provision}
`

// OPAEvaluator evaluates the channel policy with OPA Rego. The query is prepared once at construction.
type OPAEvaluator struct {
	query  rego.PreparedEvalQuery
	logger zerolog.Logger
}

// NewOPAEvaluator compiles policy (DefaultRegoPolicy when empty) and prepares the binding query.
func NewOPAEvaluator(ctx context.Context, policy string, logger zerolog.Logger) (*OPAEvaluator, error) {
	if policy == "" {
		policy = DefaultRegoPolicy
	}
	pq, err := rego.New(
		rego.Query(bindingQuery),
		rego.Module("channel_policy.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile channel policy: %w", err)
	}
	return &OPAEvaluator{query: pq, logger: logger.With().Str("component", "policy").Logger()}, nil
}

// NewOPAEvaluatorFromFile reads the Rego policy at path; an empty path uses DefaultRegoPolicy.
func NewOPAEvaluatorFromFile(ctx context.Context, path string, logger zerolog.Logger) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx, "", logger)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channel policy: %w", err)
	}
	return NewOPAEvaluator(ctx, string(b), logger)
}

// Evaluate returns the binding for channel. Unknown channels are rejected before evaluation.
// If evaluation fails, yields no valid role or rebinds the channel away from StaticBinding, the error
// is logged and StaticBinding is used.
func (e *OPAEvaluator) Evaluate(ctx context.Context, channel accesscodedomain.Channel) (Binding, error) {
	if !channel.Valid() {
		return Binding{}, ErrUnknownChannel
	}
	b, err := e.eval(ctx, channel)
	if err != nil {
		e.logger.Warn().Err(err).Str("channel", string(channel)).Msg("policy evaluation failed, using built-in binding")
		return StaticBinding(channel)
	}
	return b, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, channel accesscodedomain.Channel) (Binding, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{"channel": string(channel)}))
	if err != nil {
		return Binding{}, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Binding{}, fmt.Errorf("policy query returned no result")
	}
	obj, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Binding{}, fmt.Errorf("policy binding is %T, want object", rs[0].Expressions[0].Value)
	}
	roleStr, _ := obj["role"].(string)
	role := userdomain.Role(roleStr)
	if !role.Valid() {
		return Binding{}, fmt.Errorf("policy bound unknown role %q", roleStr)
	}
	provision, _ := obj["provision"].(bool)
	got := Binding{Role: role, Provision: provision}
	fixed, err := StaticBinding(channel)
	if err != nil {
		return Binding{}, err
	}
	if got != fixed {
		return Binding{}, fmt.Errorf("%w: %s bound to %+v, want %+v", ErrBindingChanged, channel, got, fixed)
	}
	return got, nil
}

// HealthCheck evaluates the prepared policy for every channel. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	for _, ch := range []accesscodedomain.Channel{accesscodedomain.ChannelEmail, accesscodedomain.ChannelSMS} {
		if _, err := e.eval(ctx, ch); err != nil {
			return fmt.Errorf("eval channel policy: %w", err)
		}
	}
	return nil
}
