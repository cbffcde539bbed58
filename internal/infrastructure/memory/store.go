package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vladosShikos/losb-back/internal/application/verification"
	"github.com/vladosShikos/losb-back/internal/domain"
)

// Store keeps users and pending verifications in process memory.
// It is the backend for dev runs without Postgres and for handler tests.
type Store struct {
	mu      sync.RWMutex
	users   map[int64]domain.User
	pending map[int64]domain.PendingVerification

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	// autoCreateCode > 0 makes unknown users appear with a placeholder phone.
	autoCreateCode int
}

func NewStore() *Store {
	return &Store{
		users:   make(map[int64]domain.User),
		pending: make(map[int64]domain.PendingVerification),
		locks:   make(map[int64]*sync.Mutex),
	}
}

// WithAutoCreate makes Get create missing users with a placeholder phone in
// the given country code, the way accounts start out after Telegram login.
func (s *Store) WithAutoCreate(countryCode int) *Store {
	s.autoCreateCode = countryCode
	return s
}

func (s *Store) Seed(users ...domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.users[u.TelegramID] = u
	}
}

// Users returns a store for reads outside a unit of work.
func (s *Store) Users() verification.UserStore {
	return userStore{s: s, scope: 0}
}

func (s *Store) userLock(id int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// WithinUserLock serializes work per user. On error the user's row and
// pending verification are restored to what they were before fn ran.
func (s *Store) WithinUserLock(ctx context.Context, telegramID int64, fn func(ctx context.Context, st verification.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l := s.userLock(telegramID)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	userBefore, hadUser := s.users[telegramID]
	pendingBefore, hadPending := s.pending[telegramID]
	s.mu.RUnlock()

	err := fn(ctx, verification.Stores{
		Users:         userStore{s: s, scope: telegramID},
		Verifications: verificationStore{s: s, scope: telegramID},
	})
	if err == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if hadUser {
		s.users[telegramID] = userBefore
	} else {
		delete(s.users, telegramID)
	}
	if hadPending {
		s.pending[telegramID] = pendingBefore
	} else {
		delete(s.pending, telegramID)
	}
	return err
}

func checkScope(scope, id int64) error {
	if scope != 0 && scope != id {
		return domain.ErrInternal(fmt.Errorf("memory: user %d accessed inside lock of user %d", id, scope))
	}
	return nil
}

type userStore struct {
	s     *Store
	scope int64
}

func (u userStore) Get(ctx context.Context, telegramID int64) (domain.User, error) {
	if err := checkScope(u.scope, telegramID); err != nil {
		return domain.User{}, err
	}

	u.s.mu.RLock()
	usr, ok := u.s.users[telegramID]
	u.s.mu.RUnlock()
	if ok {
		return usr, nil
	}
	if u.s.autoCreateCode <= 0 {
		return domain.User{}, domain.ErrUserNotFound()
	}

	now := time.Now().UTC()
	usr = domain.User{
		TelegramID: telegramID,
		Phone:      domain.PlaceholderPhone(u.s.autoCreateCode),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if existing, ok := u.s.users[telegramID]; ok {
		return existing, nil
	}
	u.s.users[telegramID] = usr
	return usr, nil
}

func (u userStore) Save(ctx context.Context, usr domain.User) error {
	if err := checkScope(u.scope, usr.TelegramID); err != nil {
		return err
	}
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.users[usr.TelegramID]; !ok {
		return domain.ErrUserNotFound()
	}
	u.s.users[usr.TelegramID] = usr
	return nil
}

type verificationStore struct {
	s     *Store
	scope int64
}

func (v verificationStore) Get(ctx context.Context, telegramID int64) (domain.PendingVerification, error) {
	if err := checkScope(v.scope, telegramID); err != nil {
		return domain.PendingVerification{}, err
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	p, ok := v.s.pending[telegramID]
	if !ok {
		return domain.PendingVerification{}, domain.ErrNoPendingVerification()
	}
	return p, nil
}

func (v verificationStore) Put(ctx context.Context, p domain.PendingVerification) error {
	if err := checkScope(v.scope, p.TelegramID); err != nil {
		return err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.pending[p.TelegramID] = p
	return nil
}

func (v verificationStore) IncrementAttempts(ctx context.Context, telegramID int64) (int, error) {
	if err := checkScope(v.scope, telegramID); err != nil {
		return 0, err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	p, ok := v.s.pending[telegramID]
	if !ok {
		return 0, domain.ErrNoPendingVerification()
	}
	p.Attempts++
	v.s.pending[telegramID] = p
	return p.Attempts, nil
}

func (v verificationStore) Delete(ctx context.Context, telegramID int64) error {
	if err := checkScope(v.scope, telegramID); err != nil {
		return err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	delete(v.s.pending, telegramID)
	return nil
}
