package domain

import (
	"time"

	userdomain "github.com/hungle-ag/task-manager-server/internal/user/domain"
)

// DefaultTTL is how long an issued passcode stays live.
const DefaultTTL = 120 * time.Second

// AccessCode is one issued passcode attempt (stored in the access_codes table).
// Only the SHA-256 hash of the code is persisted.
type AccessCode struct {
	ID         string
	Identifier string // email address or phone number the code was sent to
	Channel    Channel
	Role       userdomain.Role
	CodeHash   string
	IsUsed     bool
	CreatedAt  time.Time
}

// Channel is the delivery medium of a passcode.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// IsLive reports whether the code is unused and was created no more than ttl before now.
func (a *AccessCode) IsLive(now time.Time, ttl time.Duration) bool {
	if a == nil || a.IsUsed {
		return false
	}
	return a.WithinTTL(now, ttl)
}

// WithinTTL reports whether now - CreatedAt <= ttl. A zero CreatedAt is never within TTL.
func (a *AccessCode) WithinTTL(now time.Time, ttl time.Duration) bool {
	if a == nil || a.CreatedAt.IsZero() {
		return false
	}
	return !now.After(a.CreatedAt.Add(ttl))
}
