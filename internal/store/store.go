// Package store exposes the shared room log as a validated append API plus a
// live snapshot feed.
//
// The feed is deliberately snapshot-based, not delta-based: every emission
// is the complete ordered view known so far. Consumers replace their list
// wholesale instead of merging diffs — more bandwidth, no client-side merge
// logic, and a late subscriber needs nothing beyond the latest emission.
package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pruebachat/chatcore/internal/models"
	"github.com/pruebachat/chatcore/internal/repository"
	"go.uber.org/zap"
)

// ChangeNotifier propagates "the log changed" to other server instances.
// The local instance refreshes directly; the notifier exists so appends on
// one instance wake subscribers on every other.
type ChangeNotifier interface {
	Notify(ctx context.Context, messageID int64)
}

// Store is the MessageStore: validated appends into the repository plus
// snapshot fanout to subscribers.
type Store struct {
	repo     repository.MessageRepository
	notifier ChangeNotifier
	hub      *hub
	limit    int
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier attaches a cross-instance change notifier.
func WithNotifier(n ChangeNotifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithHistoryLimit caps how many of the latest messages a snapshot carries.
func WithHistoryLimit(limit int) Option {
	return func(s *Store) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

func New(repo repository.MessageRepository, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		hub:    newHub(),
		limit:  500,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendText appends a plain text message.
//
// Empty or whitespace-only content is rejected with ErrEmptyMessage before
// any repository call — the record must never reach the log, and no network
// round-trip is spent on it.
func (s *Store) AppendText(ctx context.Context, authorID uuid.UUID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	return s.append(ctx, authorID, models.KindText, content)
}

// AppendImage appends an image message referencing an already-uploaded blob
// URL. Callers must only pass URLs returned by a successful upload; the
// media coordinator enforces that gate.
func (s *Store) AppendImage(ctx context.Context, authorID uuid.UUID, url string) (*models.Message, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyMessage
	}
	return s.append(ctx, authorID, models.KindImage, url)
}

func (s *Store) append(ctx context.Context, authorID uuid.UUID, kind models.MessageKind, body string) (*models.Message, error) {
	if authorID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	msg, err := s.repo.Append(ctx, authorID, kind, body)
	if err != nil {
		return nil, &WriteError{Err: err}
	}

	// Wake local subscribers, then the rest of the fleet. The redis echo of
	// our own publish triggers a second refresh; that's harmless — the
	// snapshot it recomputes is identical.
	s.Refresh(ctx)
	if s.notifier != nil {
		s.notifier.Notify(ctx, msg.ID)
	}

	return msg, nil
}

// Snapshot returns the current full ordered view (ascending sent_at, id).
func (s *Store) Snapshot(ctx context.Context) ([]models.Message, error) {
	return s.repo.ListRecent(ctx, s.limit)
}

// Subscribe registers a live view of the log. The initial snapshot is
// delivered immediately; every subsequent log change pushes a recomputed
// full snapshot. Callers must Close the subscription when done.
func (s *Store) Subscribe(ctx context.Context) (*Subscription, error) {
	// Register before reading the snapshot: an append landing in between
	// publishes a view at least as new as the one we read, so the initial
	// send below can never clobber fresher data.
	sub := s.hub.register()

	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		sub.Close()
		return nil, err
	}

	select {
	case sub.ch <- snapshot:
	default:
		// A publish beat us to the buffer with a newer view; keep it.
	}
	return sub, nil
}

// Refresh recomputes the snapshot and fans it out. Called after local
// appends and by the cross-instance change listener.
func (s *Store) Refresh(ctx context.Context) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		// Subscribers keep their previous view; the next successful
		// refresh catches them up.
		s.logger.Warn("snapshot refresh failed", zap.Error(err))
		return
	}
	s.hub.publish(snapshot)
}

// Subscribers reports the number of live subscriptions.
func (s *Store) Subscribers() int {
	return s.hub.count()
}
