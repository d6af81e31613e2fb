package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pruebachat/chatcore/internal/models"
	"github.com/pruebachat/chatcore/internal/repository/memory"
	"github.com/pruebachat/chatcore/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func recvSnapshot(t *testing.T, sub *store.Subscription) []models.Message {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestAppendTextRejectsEmptyBeforeAnyWrite(t *testing.T) {
	repo := memory.NewMessageStore()
	st := store.New(repo, zap.NewNop())

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := st.AppendText(context.Background(), uuid.New(), content)
		assert.ErrorIs(t, err, store.ErrEmptyMessage)
	}

	// The record must never reach the log: zero repository calls.
	assert.Equal(t, 0, repo.AppendCalls())
}

func TestAppendRequiresAuthenticatedAuthor(t *testing.T) {
	repo := memory.NewMessageStore()
	st := store.New(repo, zap.NewNop())

	_, err := st.AppendText(context.Background(), uuid.Nil, "hi")
	assert.ErrorIs(t, err, store.ErrNotAuthenticated)
	assert.Equal(t, 0, repo.AppendCalls())
}

func TestAppendOrderingIsAscending(t *testing.T) {
	repo := memory.NewMessageStore()
	st := store.New(repo, zap.NewNop())
	author := uuid.New()

	a, err := st.AppendText(context.Background(), author, "first")
	require.NoError(t, err)
	b, err := st.AppendText(context.Background(), author, "second")
	require.NoError(t, err)

	assert.False(t, a.SentAt.After(b.SentAt), "a.SentAt must be <= b.SentAt")
	assert.Less(t, a.ID, b.ID)

	snap, err := st.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, "first", snap[0].Body)
	assert.Equal(t, "second", snap[1].Body)
}

func TestSubscribeDeliversInitialAndUpdatedSnapshots(t *testing.T) {
	repo := memory.NewMessageStore()
	st := store.New(repo, zap.NewNop())
	author := uuid.New()

	_, err := st.AppendText(context.Background(), author, "before subscribe")
	require.NoError(t, err)

	sub, err := st.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	initial := recvSnapshot(t, sub)
	require.Len(t, initial, 1)
	assert.Equal(t, "before subscribe", initial[0].Body)

	_, err = st.AppendText(context.Background(), author, "after subscribe")
	require.NoError(t, err)

	updated := recvSnapshot(t, sub)
	require.Len(t, updated, 2)
	assert.Equal(t, "after subscribe", updated[1].Body)
}

func TestSlowSubscriberGetsLatestSnapshot(t *testing.T) {
	repo := memory.NewMessageStore()
	st := store.New(repo, zap.NewNop())
	author := uuid.New()

	sub, err := st.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	// Nobody reads between these appends: intermediate snapshots are
	// coalesced and the next read sees the newest complete view.
	for _, body := range []string{"one", "two", "three"} {
		_, err := st.AppendText(context.Background(), author, body)
		require.NoError(t, err)
	}

	// Appends publish synchronously, so by now the buffer holds exactly the
	// final view. One read, complete list.
	snap := recvSnapshot(t, sub)
	require.Len(t, snap, 3)
	assert.Equal(t, "three", snap[2].Body)
}

func TestCloseReleasesRegistration(t *testing.T) {
	st := store.New(memory.NewMessageStore(), zap.NewNop())

	sub, err := st.Subscribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Subscribers())

	sub.Close()
	sub.Close() // idempotent
	assert.Equal(t, 0, st.Subscribers())

	// Drain the buffered initial snapshot; the channel must then be closed.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-sub.Updates():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after Close")
		}
	}
}

// failingRepo simulates connectivity loss at the persistence boundary.
type failingRepo struct {
	err error
}

func (f *failingRepo) Append(ctx context.Context, authorID uuid.UUID, kind models.MessageKind, body string) (*models.Message, error) {
	return nil, f.err
}

func (f *failingRepo) ListRecent(ctx context.Context, limit int) ([]models.Message, error) {
	return nil, f.err
}

func TestAppendWrapsRepositoryFailureAsWriteError(t *testing.T) {
	cause := errors.New("connection refused")
	st := store.New(&failingRepo{err: cause}, zap.NewNop())

	_, err := st.AppendText(context.Background(), uuid.New(), "hi")

	var writeErr *store.WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.ErrorIs(t, err, cause)
}

func TestHistoryLimitCapsSnapshot(t *testing.T) {
	repo := memory.NewMessageStore()
	st := store.New(repo, zap.NewNop(), store.WithHistoryLimit(2))
	author := uuid.New()

	for _, body := range []string{"one", "two", "three"} {
		_, err := st.AppendText(context.Background(), author, body)
		require.NoError(t, err)
	}

	snap, err := st.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, "two", snap[0].Body)
	assert.Equal(t, "three", snap[1].Body)
}
