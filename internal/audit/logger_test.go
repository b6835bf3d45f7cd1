package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hungle-ag/task-manager-server/internal/audit/domain"
)

// mockAuditRepo implements the audit repository interface for tests.
type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
	check     func(context.Context)
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if m.check != nil {
		m.check(ctx)
	}
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func TestLogger_LogEvent(t *testing.T) {
	repo := &mockAuditRepo{}
	l := NewLogger(repo, func(context.Context) string { return "192.168.1.1" }, zerolog.Nop())

	l.LogEvent(context.Background(), "user-1", domain.ActionOTPVerified, domain.ResourceAccessCode,
		map[string]string{"channel": "sms", "access_code_id": "ac-1"})

	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	e := repo.entries[0]
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Errorf("id/created_at not set: %+v", e)
	}
	if e.UserID != "user-1" || e.Action != domain.ActionOTPVerified || e.Resource != domain.ResourceAccessCode {
		t.Errorf("entry = %+v", e)
	}
	if e.IP != "192.168.1.1" {
		t.Errorf("IP = %q", e.IP)
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(e.Metadata), &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	if meta["channel"] != "sms" || meta["access_code_id"] != "ac-1" {
		t.Errorf("metadata = %v", meta)
	}
}

func TestLogger_LogEvent_Defaults(t *testing.T) {
	repo := &mockAuditRepo{}
	NewLogger(repo, nil, zerolog.Nop()).LogEvent(context.Background(), "", domain.ActionOTPIssued, domain.ResourceAccessCode, nil)
	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	if repo.entries[0].IP != "unknown" {
		t.Errorf("IP = %q, want unknown", repo.entries[0].IP)
	}
	if repo.entries[0].Metadata != "" {
		t.Errorf("Metadata = %q, want empty", repo.entries[0].Metadata)
	}
}

func TestLogger_LogEvent_RepoErrorIsSwallowed(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	NewLogger(repo, nil, zerolog.Nop()).LogEvent(context.Background(), "u1", domain.ActionOTPIssued, domain.ResourceAccessCode, nil)
	if len(repo.entries) != 0 {
		t.Error("no entry should be stored on error")
	}
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	l.LogEvent(context.Background(), "u1", domain.ActionOTPIssued, domain.ResourceAccessCode, nil)
	NewLogger(nil, nil, zerolog.Nop()).LogEvent(context.Background(), "u1", domain.ActionOTPIssued, domain.ResourceAccessCode, nil)
}

func TestLogger_LogEvent_MasksIdentifier(t *testing.T) {
	repo := &mockAuditRepo{}
	NewLogger(repo, nil, zerolog.Nop()).LogEvent(context.Background(), "", domain.ActionOTPThrottled, domain.ResourceAccessCode,
		map[string]string{domain.MetaIdentifier: "staff@example.com", "channel": "email"})

	var meta map[string]string
	if err := json.Unmarshal([]byte(repo.entries[0].Metadata), &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	if meta[domain.MetaIdentifier] != "s***@example.com" {
		t.Errorf("identifier = %q, want masked", meta[domain.MetaIdentifier])
	}
	if meta["channel"] != "email" {
		t.Errorf("channel = %q", meta["channel"])
	}
}

func TestLogger_LogEvent_SurvivesCancelledRequest(t *testing.T) {
	repo := &mockAuditRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var sawErr error
	repo.check = func(ctx context.Context) { sawErr = ctx.Err() }
	NewLogger(repo, nil, zerolog.Nop()).LogEvent(ctx, "u1", domain.ActionOTPVerified, domain.ResourceAccessCode, nil)
	if sawErr != nil {
		t.Errorf("repository saw a cancelled context: %v", sawErr)
	}
	if len(repo.entries) != 1 {
		t.Errorf("entries = %d, want 1", len(repo.entries))
	}
}

func TestMaskIdentifier(t *testing.T) {
	tests := []struct{ in, want string }{
		{"staff@example.com", "s***@example.com"},
		{"+84901234567", "+8*******567"},
		{"1234", "****"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MaskIdentifier(tt.in); got != tt.want {
			t.Errorf("MaskIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
