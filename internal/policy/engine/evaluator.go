// Package engine evaluates the channel→role binding that decides which role a passcode channel
// authenticates and whether that role is provisioned on first verification.
package engine

import (
	"context"
	"errors"

	accesscodedomain "github.com/hungle-ag/task-manager-server/internal/accesscode/domain"
	userdomain "github.com/hungle-ag/task-manager-server/internal/user/domain"
)

var (
	// ErrUnknownChannel is returned when no role is bound to a channel.
	ErrUnknownChannel = errors.New("no role bound to channel")
	// ErrBindingChanged is returned when a policy binds a channel differently from StaticBinding.
	ErrBindingChanged = errors.New("policy changes a fixed channel binding")
)

// Binding is the outcome of evaluating the channel policy for one channel.
type Binding struct {
	Role userdomain.Role
	// Provision reports whether an unknown identity of Role is created on successful verification.
	Provision bool
}

// Evaluator evaluates the channel policy.
type Evaluator interface {
	Evaluate(ctx context.Context, channel accesscodedomain.Channel) (Binding, error)
}

// StaticBinding is the built-in binding: email authenticates staff, sms authenticates self-provisioning supervisors.
func StaticBinding(channel accesscodedomain.Channel) (Binding, error) {
	switch channel {
	case accesscodedomain.ChannelEmail:
		return Binding{Role: userdomain.RoleStaff}, nil
	case accesscodedomain.ChannelSMS:
		return Binding{Role: userdomain.RoleSupervisor, Provision: true}, nil
	default:
		return Binding{}, ErrUnknownChannel
	}
}

// StaticEvaluator evaluates StaticBinding without a policy engine.
type StaticEvaluator struct{}

// Evaluate returns StaticBinding(channel).
func (StaticEvaluator) Evaluate(_ context.Context, channel accesscodedomain.Channel) (Binding, error) {
	return StaticBinding(channel)
}
