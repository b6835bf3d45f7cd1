package otp

import (
	"regexp"

	accesscodedomain "github.com/hungle-ag/task-manager-server/internal/accesscode/domain"
)

var (
	// EmailPattern is the accepted email address format.
	EmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// PhonePattern is the accepted phone format: "+" followed by 8 to 15 digits.
	PhonePattern = regexp.MustCompile(`^\+\d{8,15}$`)
	// CodePattern is the accepted passcode format.
	CodePattern = regexp.MustCompile(`^\d{6}$`)
)

// identifierField returns the request field name carrying the identifier for channel.
func identifierField(channel accesscodedomain.Channel) string {
	if channel == accesscodedomain.ChannelSMS {
		return "phone"
	}
	return "email"
}

func validateIdentifier(channel accesscodedomain.Channel, identifier string) error {
	switch channel {
	case accesscodedomain.ChannelEmail:
		if !EmailPattern.MatchString(identifier) {
			return invalidField("email", "Invalid email")
		}
	case accesscodedomain.ChannelSMS:
		if !PhonePattern.MatchString(identifier) {
			return invalidField("phone", "Invalid phone number")
		}
	default:
		return invalidField("channel", "Unsupported channel")
	}
	return nil
}
