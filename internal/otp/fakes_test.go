package otp

import (
	"context"
	"sort"
	"sync"
	"time"

	accesscodedomain "github.com/hungle-ag/task-manager-server/internal/accesscode/domain"
	accesscoderepo "github.com/hungle-ag/task-manager-server/internal/accesscode/repository"
	"github.com/hungle-ag/task-manager-server/internal/telemetry"
	userdomain "github.com/hungle-ag/task-manager-server/internal/user/domain"
)

type memCodeRepo struct {
	mu        sync.Mutex
	m         map[string]*accesscodedomain.AccessCode
	listErr   error
	deleteErr error
	createErr error
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{m: make(map[string]*accesscodedomain.AccessCode)}
}

func (r *memCodeRepo) Create(_ context.Context, c *accesscodedomain.AccessCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *c
	r.m[c.ID] = &cp
	return nil
}

func (r *memCodeRepo) GetByID(_ context.Context, id string) (*accesscodedomain.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memCodeRepo) ListUnused(_ context.Context, f accesscoderepo.Filter) ([]*accesscodedomain.AccessCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*accesscodedomain.AccessCode
	for _, c := range r.m {
		if c.IsUsed || c.Identifier != f.Identifier {
			continue
		}
		if f.Role != "" && c.Role != f.Role {
			continue
		}
		if f.Channel != "" && c.Channel != f.Channel {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memCodeRepo) MarkUsed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[id]
	if !ok || c.IsUsed {
		return accesscoderepo.ErrAlreadyUsed
	}
	c.IsUsed = true
	return nil
}

func (r *memCodeRepo) DeleteBatch(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	for _, id := range ids {
		delete(r.m, id)
	}
	return nil
}

func (r *memCodeRepo) get(id string) *accesscodedomain.AccessCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[id]
}

func (r *memCodeRepo) forIdentifier(identifier string) []*accesscodedomain.AccessCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*accesscodedomain.AccessCode
	for _, c := range r.m {
		if c.Identifier == identifier {
			out = append(out, c)
		}
	}
	return out
}

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*userdomain.User
	creates int
}

func newMemUserRepo(users ...*userdomain.User) *memUserRepo {
	r := &memUserRepo{byID: make(map[string]*userdomain.User)}
	for _, u := range users {
		r.byID[u.ID] = u
	}
	return r
}

func (r *memUserRepo) GetByEmailAndRole(_ context.Context, email string, role userdomain.Role) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email && u.Role == role {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetByPhoneAndRole(_ context.Context, phone string, role userdomain.Role) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Phone == phone && u.Role == role {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) CreateIfAbsentByPhone(_ context.Context, u *userdomain.User) (*userdomain.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Phone == u.Phone && existing.Role == u.Role {
			cp := *existing
			return &cp, false, nil
		}
	}
	cp := *u
	r.byID[u.ID] = &cp
	r.creates++
	return u, true, nil
}

func (r *memUserRepo) MarkVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.Verified = true
	}
	return nil
}

func (r *memUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// captureDispatcher records the last code sent to each recipient.
type captureDispatcher struct {
	mu    sync.Mutex
	codes map[string]string
	calls int
	err   error
}

func newCaptureDispatcher() *captureDispatcher {
	return &captureDispatcher{codes: make(map[string]string)}
}

func (d *captureDispatcher) Deliver(_ context.Context, _ accesscodedomain.Channel, to, code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return d.err
	}
	d.codes[to] = code
	return nil
}

func (d *captureDispatcher) codeFor(to string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.codes[to]
}

type fakeLock struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	released int
}

func newFakeLock() *fakeLock { return &fakeLock{held: make(map[string]bool)} }

func (l *fakeLock) Acquire(_ context.Context, identifier, role, channel string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	k := identifier + "|" + role + "|" + channel
	if l.held[k] {
		return false, nil
	}
	l.held[k] = true
	return true, nil
}

func (l *fakeLock) Release(_ context.Context, identifier, role, channel string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, identifier+"|"+role+"|"+channel)
	l.released++
	return nil
}

type captureAuditor struct {
	mu      sync.Mutex
	actions []string
}

func (a *captureAuditor) LogEvent(_ context.Context, _, action, _ string, _ map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

func (a *captureAuditor) has(action string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, x := range a.actions {
		if x == action {
			return true
		}
	}
	return false
}

type countingMetrics struct {
	mu                                  sync.Mutex
	issued, throttled, verified, failed int
	reasons                             []string
}

func (m *countingMetrics) Issued(context.Context, string) {
	m.mu.Lock()
	m.issued++
	m.mu.Unlock()
}

func (m *countingMetrics) Throttled(context.Context, string) {
	m.mu.Lock()
	m.throttled++
	m.mu.Unlock()
}

func (m *countingMetrics) Verified(context.Context, string, bool) {
	m.mu.Lock()
	m.verified++
	m.mu.Unlock()
}

func (m *countingMetrics) Failed(_ context.Context, _ string, reason string) {
	m.mu.Lock()
	m.failed++
	m.reasons = append(m.reasons, reason)
	m.mu.Unlock()
}

type chanEmitter struct {
	ch chan *telemetry.IdentityVerified
}

func (e *chanEmitter) Emit(_ context.Context, ev *telemetry.IdentityVerified) error {
	e.ch <- ev
	return nil
}

// testClock is a settable time source.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
