// Package session owns the authentication state machine and issues the
// session tokens the rest of the system trusts.
//
// The machine is: Unauthenticated → Authenticating → {Authenticated |
// Failed}, and anything → Unauthenticated via Logout. Message writes
// elsewhere require an Authenticated identity; the identity is immutable
// from the moment authentication succeeds until Logout.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pruebachat/chatcore/internal/auth"
	"github.com/pruebachat/chatcore/internal/models"
	"go.uber.org/zap"
)

type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	// StateFailed is Unauthenticated plus a retained reason from the last
	// attempt. A new Login/Register is allowed from here.
	StateFailed
)

// Session is the authenticated identity context. Token is the signed JWT
// callers present on subsequent requests.
type Session struct {
	UserID        uuid.UUID
	Email         string
	Token         string
	EstablishedAt time.Time
}

type EventKind int

const (
	// EventLoading is emitted exactly once, immediately, when an attempt
	// starts.
	EventLoading EventKind = iota
	// EventSuccess is terminal; Session is set.
	EventSuccess
	// EventError is terminal; Err is set.
	EventError
)

// Event is one emission on the stream returned by Login/Register. Every
// accepted attempt produces exactly one EventLoading followed by exactly one
// terminal event, after which the channel is closed.
type Event struct {
	Kind    EventKind
	Session *Session
	Err     error
}

// Manager serializes authentication attempts and holds the current session.
// Safe for concurrent use.
type Manager struct {
	identity Identity
	secret   string
	tokenTTL time.Duration
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	current     *Session
	lastErr     error
	watchers    map[int]chan uuid.UUID
	nextWatcher int
}

func NewManager(identity Identity, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		identity: identity,
		secret:   jwtSecret,
		tokenTTL: tokenTTL,
		logger:   logger,
		state:    StateUnauthenticated,
		watchers: make(map[int]chan uuid.UUID),
	}
}

// Login authenticates against the identity service.
//
// The returned channel is buffered for the full event sequence, so the
// manager never blocks on a caller that has already been torn down — unread
// results are simply dropped when the channel is garbage collected.
//
// Empty-credential gating is the caller's job (the HTTP layer rejects blank
// input before this is ever called); the manager does not re-validate.
func (m *Manager) Login(ctx context.Context, email, password string) <-chan Event {
	return m.attempt(ctx, email, password, false)
}

// Register creates a new account. On success the account is immediately
// authenticated — same contract as Login.
func (m *Manager) Register(ctx context.Context, email, password string) <-chan Event {
	return m.attempt(ctx, email, password, true)
}

func (m *Manager) attempt(ctx context.Context, email, password string, register bool) <-chan Event {
	events := make(chan Event, 2)

	m.mu.Lock()
	if m.state == StateAuthenticating {
		m.mu.Unlock()
		// Rejected attempts are terminal-only: no Loading, one Error.
		events <- Event{Kind: EventError, Err: ErrAuthInProgress}
		close(events)
		return events
	}
	m.state = StateAuthenticating
	m.mu.Unlock()

	events <- Event{Kind: EventLoading}
	go m.authenticate(ctx, email, password, register, events)
	return events
}

func (m *Manager) authenticate(ctx context.Context, email, password string, register bool, events chan Event) {
	defer close(events)

	var (
		user *models.User
		err  error
	)
	if register {
		user, err = m.identity.CreateAccount(ctx, email, password)
	} else {
		user, err = m.identity.Authenticate(ctx, email, password)
	}
	if err != nil {
		m.fail(err)
		m.logger.Info("authentication failed", zap.String("email", email), zap.Error(err))
		events <- Event{Kind: EventError, Err: err}
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email, m.secret, m.tokenTTL)
	if err != nil {
		m.fail(err)
		m.logger.Error("failed to issue session token", zap.Error(err))
		events <- Event{Kind: EventError, Err: err}
		return
	}

	sess := &Session{
		UserID:        user.ID,
		Email:         user.Email,
		Token:         token,
		EstablishedAt: time.Now(),
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.current = sess
	m.lastErr = nil
	m.notifyLocked(user.ID)
	m.mu.Unlock()

	m.logger.Info("session established", zap.String("user_id", user.ID.String()))
	events <- Event{Kind: EventSuccess, Session: sess}
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	if m.current != nil {
		// A failed re-authentication leaves the existing session intact:
		// the identity stays immutable until an explicit Logout.
		m.state = StateAuthenticated
	} else {
		m.state = StateFailed
		m.lastErr = err
	}
	m.mu.Unlock()
}

// Logout clears the session unconditionally. Idempotent: logging out while
// already unauthenticated is a no-op beyond re-notifying watchers.
func (m *Manager) Logout() {
	m.mu.Lock()
	wasAuthenticated := m.current != nil
	m.state = StateUnauthenticated
	m.current = nil
	m.lastErr = nil
	m.notifyLocked(uuid.Nil)
	m.mu.Unlock()

	if wasAuthenticated {
		m.logger.Info("session cleared")
	}
}

// CurrentUserID returns the authenticated identity, or uuid.Nil when there
// is none. Never panics.
func (m *Manager) CurrentUserID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return uuid.Nil
	}
	return m.current.UserID
}

// State reports the current machine state; LastError the retained reason
// when that state is StateFailed.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Watch registers for identity changes: each successful login pushes the new
// user id, each logout pushes uuid.Nil. The feed engine uses this to retag
// IsMine without resubscribing to the log. The returned cancel releases the
// registration; it is safe to call more than once.
func (m *Manager) Watch() (<-chan uuid.UUID, func()) {
	ch := make(chan uuid.UUID, 4)

	m.mu.Lock()
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = ch
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if w, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(w)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

// notifyLocked pushes uid to every watcher. Latest-wins: if a watcher's
// buffer is full the oldest pending value is discarded — only the current
// identity matters, not the history of changes.
func (m *Manager) notifyLocked(uid uuid.UUID) {
	for _, ch := range m.watchers {
		select {
		case ch <- uid:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- uid:
			default:
			}
		}
	}
}
