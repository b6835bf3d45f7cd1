package domain

import "time"

// Audit actions recorded by the OTP flow.
const (
	ActionOTPIssued       = "otp_issued"
	ActionOTPThrottled    = "otp_throttled"
	ActionOTPVerified     = "otp_verified"
	ActionOTPVerifyFailed = "otp_verify_failed"
	ActionUserProvisioned = "user_provisioned"
)

// Audit resources.
const (
	ResourceAccessCode = "access_code"
	ResourceUser       = "user"
)

// MetaIdentifier is the metadata key for the email or phone a passcode was sent to.
// The logger masks its value before it is stored.
const MetaIdentifier = "identifier"

// AuditLog represents an audit event. UserID is empty when the actor is not yet known.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
