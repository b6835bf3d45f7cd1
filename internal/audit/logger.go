package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hungle-ag/task-manager-server/internal/audit/domain"
	auditrepo "github.com/hungle-ag/task-manager-server/internal/audit/repository"
)

// writeTimeout bounds an audit insert once it is detached from the request context.
const writeTimeout = 3 * time.Second

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger records OTP lifecycle events. LogEvent never fails the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource string, metadata map[string]string)
}

// Logger persists audit events through the repository.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	logger      zerolog.Logger
	now         func() time.Time
}

// NewLogger returns a Logger writing to repo. ipExtractor may be nil; IP is then "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, logger zerolog.Logger) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor, logger: logger, now: time.Now}
}

// LogEvent writes one entry. The write outlives a cancelled request so a client hanging up
// after verification does not drop its audit row.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource string, metadata map[string]string) {
	if l == nil || l.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        l.clientIP(ctx),
		Metadata:  encodeMetadata(metadata),
		CreatedAt: l.now().UTC(),
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := l.repo.Create(writeCtx, entry); err != nil {
		l.logger.Warn().Err(err).Str("action", action).Str("resource", resource).Msg("audit: failed to log event")
	}
}

func (l *Logger) clientIP(ctx context.Context) string {
	if l.ipExtractor != nil {
		if ip := l.ipExtractor(ctx); ip != "" {
			return ip
		}
	}
	return "unknown"
}

func encodeMetadata(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if k == domain.MetaIdentifier {
			v = MaskIdentifier(v)
		}
		out[k] = v
	}
	b, err := json.Marshal(out)
	if err != nil {
		return ""
	}
	return string(b)
}

// MaskIdentifier keeps enough of an email or phone number to correlate events without storing it:
// "staff@example.com" becomes "s***@example.com" and "+84901234567" becomes "+8*******567".
func MaskIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if at := strings.LastIndex(identifier, "@"); at > 0 {
		return identifier[:1] + "***" + identifier[at:]
	}
	if len(identifier) <= 5 {
		return strings.Repeat("*", len(identifier))
	}
	return identifier[:2] + strings.Repeat("*", len(identifier)-5) + identifier[len(identifier)-3:]
}
