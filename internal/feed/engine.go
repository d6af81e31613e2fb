// Package feed joins the store's snapshot stream with the session identity,
// producing per-viewer message views. This is the piece that keeps IsMine
// correct across a logout/login with a different account without tearing
// down the store subscription.
package feed

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pruebachat/chatcore/internal/models"
	"github.com/pruebachat/chatcore/internal/store"
	"go.uber.org/zap"
)

// IdentitySource supplies the viewer identity and a way to hear about
// changes to it. session.Manager implements it; FixedIdentity covers
// connections whose identity is pinned for their lifetime.
type IdentitySource interface {
	CurrentUserID() uuid.UUID

	// Watch returns a channel of identity changes and a cancel releasing
	// the registration. A nil channel means the identity never changes.
	Watch() (<-chan uuid.UUID, func())
}

// FixedIdentity is an IdentitySource pinned to a single user id, used for
// connections authenticated once up front (a websocket with a JWT).
type FixedIdentity uuid.UUID

func (f FixedIdentity) CurrentUserID() uuid.UUID { return uuid.UUID(f) }

func (f FixedIdentity) Watch() (<-chan uuid.UUID, func()) {
	// Receiving on a nil channel blocks forever — exactly the behavior we
	// want inside the engine's select loop.
	return nil, func() {}
}

// Engine bridges one message store to one identity source.
type Engine struct {
	store  *store.Store
	ident  IdentitySource
	logger *zap.Logger
}

func NewEngine(st *store.Store, ident IdentitySource, logger *zap.Logger) *Engine {
	return &Engine{store: st, ident: ident, logger: logger}
}

// Subscription is a live, per-viewer view of the log.
type Subscription struct {
	ch   chan []models.MessageView
	done chan struct{}

	closeOnce sync.Once
}

// Views delivers tagged snapshots in log order (ascending). The channel is
// closed on teardown.
func (s *Subscription) Views() <-chan []models.MessageView {
	return s.ch
}

// Close tears down the subscription: the underlying store registration and
// the identity watch are released, and no further emissions occur.
// Idempotent.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Subscribe opens a live view. The first emission is the current snapshot
// tagged for the current identity; afterwards the engine re-emits on every
// log change and on every identity change. Push-driven only — no polling.
func (e *Engine) Subscribe(ctx context.Context) (*Subscription, error) {
	storeSub, err := e.store.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	identCh, cancelWatch := e.ident.Watch()

	sub := &Subscription{
		ch:   make(chan []models.MessageView, 1),
		done: make(chan struct{}),
	}

	go e.run(sub, storeSub, identCh, cancelWatch)
	return sub, nil
}

func (e *Engine) run(sub *Subscription, storeSub *store.Subscription, identCh <-chan uuid.UUID, cancelWatch func()) {
	defer func() {
		storeSub.Close()
		cancelWatch()
		close(sub.ch)
	}()

	// last holds the most recent raw snapshot so an identity change can be
	// retagged without waiting for the store to emit again. O(n) per
	// recompute; snapshot size is bounded by the store's history limit.
	var last []models.Message

	for {
		select {
		case <-sub.done:
			return

		case snapshot, ok := <-storeSub.Updates():
			if !ok {
				return
			}
			last = snapshot
			e.emit(sub, models.TagViews(last, e.ident.CurrentUserID()))

		case uid, ok := <-identCh:
			if !ok {
				identCh = nil
				continue
			}
			e.emit(sub, models.TagViews(last, uid))
		}
	}
}

// emit delivers latest-wins, mirroring the store hub: a slow consumer skips
// straight to the newest tagged view.
func (e *Engine) emit(sub *Subscription, views []models.MessageView) {
	select {
	case sub.ch <- views:
	default:
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- views:
		default:
		}
	}
}
