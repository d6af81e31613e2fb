package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pruebachat/chatcore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeIdentity is an in-memory Identity with an optional gate so tests can
// hold an attempt in flight.
type fakeIdentity struct {
	users map[string]string // email -> password
	ids   map[string]uuid.UUID
	gate  chan struct{} // if non-nil, Authenticate blocks until closed
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		users: make(map[string]string),
		ids:   make(map[string]uuid.UUID),
	}
}

func (f *fakeIdentity) add(email, password string) uuid.UUID {
	id := uuid.New()
	f.users[email] = password
	f.ids[email] = id
	return id
}

func (f *fakeIdentity) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if f.gate != nil {
		<-f.gate
	}
	pw, ok := f.users[email]
	if !ok || pw != password {
		return nil, ErrInvalidCredentials
	}
	return &models.User{ID: f.ids[email], Email: email}, nil
}

func (f *fakeIdentity) CreateAccount(ctx context.Context, email, password string) (*models.User, error) {
	if _, ok := f.users[email]; ok {
		return nil, ErrEmailTaken
	}
	id := f.add(email, password)
	return &models.User{ID: id, Email: email}, nil
}

func newTestManager(identity Identity) *Manager {
	return NewManager(identity, "test-secret", time.Hour, zap.NewNop())
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %d so far", len(out))
		}
	}
}

func TestLoginEmitsLoadingThenSuccess(t *testing.T) {
	identity := newFakeIdentity()
	userID := identity.add("a@x.com", "pw1")
	m := newTestManager(identity)

	events := collect(t, m.Login(context.Background(), "a@x.com", "pw1"))

	require.Len(t, events, 2)
	assert.Equal(t, EventLoading, events[0].Kind)
	require.Equal(t, EventSuccess, events[1].Kind)
	require.NotNil(t, events[1].Session)
	assert.Equal(t, userID, events[1].Session.UserID)
	assert.NotEmpty(t, events[1].Session.Token)

	assert.Equal(t, StateAuthenticated, m.State())
	assert.Equal(t, userID, m.CurrentUserID())
}

func TestLoginBadCredentialsEmitsLoadingThenError(t *testing.T) {
	identity := newFakeIdentity()
	identity.add("a@x.com", "pw1")
	m := newTestManager(identity)

	events := collect(t, m.Login(context.Background(), "a@x.com", "wrong"))

	require.Len(t, events, 2)
	assert.Equal(t, EventLoading, events[0].Kind)
	require.Equal(t, EventError, events[1].Kind)
	assert.ErrorIs(t, events[1].Err, ErrInvalidCredentials)

	assert.Equal(t, StateFailed, m.State())
	assert.ErrorIs(t, m.LastError(), ErrInvalidCredentials)
	assert.Equal(t, uuid.Nil, m.CurrentUserID())
}

func TestRegisterAuthenticatesImmediately(t *testing.T) {
	m := newTestManager(newFakeIdentity())

	events := collect(t, m.Register(context.Background(), "new@x.com", "password1"))

	require.Len(t, events, 2)
	require.Equal(t, EventSuccess, events[1].Kind)
	assert.Equal(t, StateAuthenticated, m.State())
	assert.Equal(t, events[1].Session.UserID, m.CurrentUserID())
}

func TestRegisterEmailTaken(t *testing.T) {
	identity := newFakeIdentity()
	identity.add("a@x.com", "pw1")
	m := newTestManager(identity)

	events := collect(t, m.Register(context.Background(), "a@x.com", "password1"))

	require.Len(t, events, 2)
	require.Equal(t, EventError, events[1].Kind)
	assert.ErrorIs(t, events[1].Err, ErrEmailTaken)
}

func TestConcurrentAttemptRejected(t *testing.T) {
	identity := newFakeIdentity()
	userID := identity.add("a@x.com", "pw1")
	identity.gate = make(chan struct{})
	m := newTestManager(identity)

	first := m.Login(context.Background(), "a@x.com", "pw1")

	// The first attempt emits Loading synchronously and is now stuck at the
	// identity round-trip.
	ev := <-first
	require.Equal(t, EventLoading, ev.Kind)

	// A second attempt while Authenticating is terminal-only: one Error,
	// no Loading.
	second := collect(t, m.Login(context.Background(), "a@x.com", "pw1"))
	require.Len(t, second, 1)
	assert.Equal(t, EventError, second[0].Kind)
	assert.ErrorIs(t, second[0].Err, ErrAuthInProgress)

	// The rejection must not have disturbed the in-flight attempt.
	close(identity.gate)
	rest := collect(t, first)
	require.Len(t, rest, 1)
	require.Equal(t, EventSuccess, rest[0].Kind)
	assert.Equal(t, userID, m.CurrentUserID())
}

func TestLogoutIsIdempotent(t *testing.T) {
	identity := newFakeIdentity()
	identity.add("a@x.com", "pw1")
	m := newTestManager(identity)

	collect(t, m.Login(context.Background(), "a@x.com", "pw1"))
	require.Equal(t, StateAuthenticated, m.State())

	m.Logout()
	assert.Equal(t, StateUnauthenticated, m.State())
	assert.Equal(t, uuid.Nil, m.CurrentUserID())

	// Logging out again is a no-op, never a panic.
	m.Logout()
	assert.Equal(t, uuid.Nil, m.CurrentUserID())
}

func TestWatchSeesLoginAndLogout(t *testing.T) {
	identity := newFakeIdentity()
	userID := identity.add("a@x.com", "pw1")
	m := newTestManager(identity)

	ch, cancel := m.Watch()
	defer cancel()

	collect(t, m.Login(context.Background(), "a@x.com", "pw1"))

	select {
	case got := <-ch:
		assert.Equal(t, userID, got)
	case <-time.After(time.Second):
		t.Fatal("no identity change after login")
	}

	m.Logout()
	select {
	case got := <-ch:
		assert.Equal(t, uuid.Nil, got)
	case <-time.After(time.Second):
		t.Fatal("no identity change after logout")
	}
}

func TestWatchCancelReleasesRegistration(t *testing.T) {
	m := newTestManager(newFakeIdentity())

	ch, cancel := m.Watch()
	cancel()
	cancel() // safe to call twice

	_, ok := <-ch
	assert.False(t, ok, "watch channel should be closed after cancel")
}
