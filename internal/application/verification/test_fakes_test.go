package verification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vladosShikos/losb-back/internal/domain"
)

/*
Fakes for ports
*/

// fakeUoW keeps users and pending verifications in maps. A failed fn
// restores the snapshot taken before it ran, like a rolled back transaction.
type fakeUoW struct {
	mu sync.Mutex

	stateMu sync.Mutex
	held    bool
	users   map[int64]domain.User
	pending map[int64]domain.PendingVerification

	// injected errors
	getUserErr   error
	saveUserErr  error
	putErr       error
	incrementErr error
	deleteErr    error

	lockCalls int
}

func newFakeUoW() *fakeUoW {
	return &fakeUoW{
		users:   map[int64]domain.User{},
		pending: map[int64]domain.PendingVerification{},
	}
}

func (f *fakeUoW) WithinUserLock(ctx context.Context, telegramID int64, fn func(ctx context.Context, s Stores) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stateMu.Lock()
	f.held = true
	f.lockCalls++
	usersSnap := cloneMap(f.users)
	pendingSnap := cloneMap(f.pending)
	f.stateMu.Unlock()

	err := fn(ctx, Stores{Users: fakeUsers{f}, Verifications: fakeVerifications{f}})

	f.stateMu.Lock()
	if err != nil {
		f.users = usersSnap
		f.pending = pendingSnap
	}
	f.held = false
	f.stateMu.Unlock()
	return err
}

func (f *fakeUoW) isHeld() bool {
	f.stateMu.Lock()
	defer f.stateMu.Unlock()
	return f.held
}

func (f *fakeUoW) seedUser(u domain.User) {
	f.stateMu.Lock()
	defer f.stateMu.Unlock()
	f.users[u.TelegramID] = u
}

func (f *fakeUoW) seedPending(p domain.PendingVerification) {
	f.stateMu.Lock()
	defer f.stateMu.Unlock()
	f.pending[p.TelegramID] = p
}

func (f *fakeUoW) user(id int64) domain.User {
	f.stateMu.Lock()
	defer f.stateMu.Unlock()
	return f.users[id]
}

func (f *fakeUoW) pendingFor(id int64) (domain.PendingVerification, bool) {
	f.stateMu.Lock()
	defer f.stateMu.Unlock()
	p, ok := f.pending[id]
	return p, ok
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type fakeUsers struct{ f *fakeUoW }

func (s fakeUsers) Get(ctx context.Context, id int64) (domain.User, error) {
	s.f.stateMu.Lock()
	defer s.f.stateMu.Unlock()
	if s.f.getUserErr != nil {
		return domain.User{}, s.f.getUserErr
	}
	u, ok := s.f.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (s fakeUsers) Save(ctx context.Context, u domain.User) error {
	s.f.stateMu.Lock()
	defer s.f.stateMu.Unlock()
	if s.f.saveUserErr != nil {
		return s.f.saveUserErr
	}
	s.f.users[u.TelegramID] = u
	return nil
}

type fakeVerifications struct{ f *fakeUoW }

func (s fakeVerifications) Get(ctx context.Context, id int64) (domain.PendingVerification, error) {
	s.f.stateMu.Lock()
	defer s.f.stateMu.Unlock()
	p, ok := s.f.pending[id]
	if !ok {
		return domain.PendingVerification{}, domain.ErrNoPendingVerification()
	}
	return p, nil
}

func (s fakeVerifications) Put(ctx context.Context, p domain.PendingVerification) error {
	s.f.stateMu.Lock()
	defer s.f.stateMu.Unlock()
	if s.f.putErr != nil {
		return s.f.putErr
	}
	s.f.pending[p.TelegramID] = p
	return nil
}

func (s fakeVerifications) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	s.f.stateMu.Lock()
	defer s.f.stateMu.Unlock()
	if s.f.incrementErr != nil {
		return 0, s.f.incrementErr
	}
	p, ok := s.f.pending[id]
	if !ok {
		return 0, domain.ErrNoPendingVerification()
	}
	p.Attempts++
	s.f.pending[id] = p
	return p.Attempts, nil
}

func (s fakeVerifications) Delete(ctx context.Context, id int64) error {
	s.f.stateMu.Lock()
	defer s.f.stateMu.Unlock()
	if s.f.deleteErr != nil {
		return s.f.deleteErr
	}
	delete(s.f.pending, id)
	return nil
}

// fakeReadUsers reads through to the unit of work's users.
type fakeReadUsers struct{ f *fakeUoW }

func (s fakeReadUsers) Get(ctx context.Context, id int64) (domain.User, error) {
	return fakeUsers(s).Get(ctx, id)
}

func (s fakeReadUsers) Save(ctx context.Context, u domain.User) error {
	return fakeUsers(s).Save(ctx, u)
}

type fakeOtp struct {
	mu    sync.Mutex
	codes []string // returned in order; the last one repeats
	err   error
	calls []int
}

func (g *fakeOtp) Generate(length int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, length)
	if g.err != nil {
		return "", g.err
	}
	if len(g.codes) == 0 {
		return strings.Repeat("7", length), nil
	}
	c := g.codes[0]
	if len(g.codes) > 1 {
		g.codes = g.codes[1:]
	}
	return c, nil
}

type fakeHasher struct {
	hashErr  error
	matchErr error
}

func (h fakeHasher) Hash(otp string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "h:" + otp, nil
}

func (h fakeHasher) Matches(hash, otp string) (bool, error) {
	if h.matchErr != nil {
		return false, h.matchErr
	}
	return hash == "h:"+otp, nil
}

type sentSMS struct {
	destination string
	message     string
}

type fakeGateway struct {
	mu     sync.Mutex
	sent   []sentSMS
	err    error
	onSend func(destination, message string) error
}

func (g *fakeGateway) Send(ctx context.Context, destination, message string) error {
	g.mu.Lock()
	hook := g.onSend
	err := g.err
	g.sent = append(g.sent, sentSMS{destination: destination, message: message})
	g.mu.Unlock()

	if hook != nil {
		if hErr := hook(destination, message); hErr != nil {
			return hErr
		}
	}
	return err
}

func (g *fakeGateway) sentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []PhoneVerifiedEvent
	err    error
}

func (p *fakePublisher) PublishPhoneVerified(ctx context.Context, evt PhoneVerifiedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

/*
Shared audit capture
*/

type auditEntry struct {
	action string
	fields map[string]string
}

type auditLog struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *auditLog) record(_ context.Context, action string, fields map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{action: action, fields: fields})
}

func (a *auditLog) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.action)
	}
	return out
}

/*
Harness
*/

const (
	testUserID = int64(424242)
	testCode   = 7
	testNumber = int64(9991234567)
)

var errBoom = errors.New("boom")

type harness struct {
	svc   *Service
	uow   *fakeUoW
	otp   *fakeOtp
	sms   *fakeGateway
	pub   *fakePublisher
	clock *fakeClock
	audit *auditLog
}

func defaultConfig() Config {
	return Config{
		OtpDigits:      4,
		ResendCooldown: 60 * time.Second,
		MaxAttempts:    3,
	}
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	h := &harness{
		uow:   newFakeUoW(),
		otp:   &fakeOtp{},
		sms:   &fakeGateway{},
		pub:   &fakePublisher{},
		clock: &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		audit: &auditLog{},
	}
	svc, err := NewService(h.uow, fakeReadUsers{h.uow}, h.otp, fakeHasher{}, h.sms, h.pub, h.clock, cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	h.svc = svc.WithAudit(h.audit.record)

	// every account starts with a placeholder phone
	h.uow.seedUser(domain.User{TelegramID: testUserID, Name: "Ivan", Phone: domain.PlaceholderPhone(testCode)})
	return h
}

// seedOtp stores a pending verification as if it was requested elapsed ago.
func (h *harness) seedOtp(otp string, attempts int, elapsed time.Duration) {
	h.uow.seedPending(domain.PendingVerification{
		TelegramID: testUserID,
		OtpHash:    "h:" + otp,
		Claimed:    domain.NewPhone(testCode, testNumber),
		Attempts:   attempts,
		CreatedAt:  h.clock.Now().Add(-elapsed),
	})
}
