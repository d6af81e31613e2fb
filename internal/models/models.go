package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that can authenticate and post to the shared room.
//
// Why uuid.UUID and not string?
//   - Type safety. You can't accidentally pass a message ID where a user ID
//     is expected, and uuid.Nil is a natural "no identity" sentinel.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// MessageKind is the closed set of message variants. The legacy client stored
// messages as loose key/value maps with an is_image flag; a typed kind removes
// the unchecked-cast failure mode entirely.
type MessageKind string

const (
	// KindText carries plain chat text in Body.
	KindText MessageKind = "text"
	// KindImage carries a blob-store URL in Body, bound only after the
	// upload has succeeded.
	KindImage MessageKind = "image"
)

// Message is one record in the shared, append-only room log.
//
// Why int64 for ID (not UUID)?
//   - Messages are the highest-volume table. bigserial is smaller, naturally
//     ordered (higher ID = newer message), and index-friendly.
//   - The ID doubles as the ordering tie-break when two messages land on the
//     same sent_at timestamp.
//
// Once appended a message is immutable: there is no edit or delete in this
// domain, so no UpdatedAt and no soft-delete flag.
type Message struct {
	ID       int64       `json:"id"`
	AuthorID uuid.UUID   `json:"author_id"`
	Kind     MessageKind `json:"kind"`
	Body     string      `json:"body"`
	SentAt   time.Time   `json:"sent_at"`
}

// MessageView is a Message as one particular subscriber sees it. IsMine is
// derived from the viewer's session identity and is recomputed on every
// snapshot — never persisted — so a logout/login with a different account
// can never leave a stale tag behind.
type MessageView struct {
	Message
	IsMine bool `json:"is_mine"`
}

// TagViews derives the per-viewer projection of a snapshot. viewerID may be
// uuid.Nil (logged out), in which case nothing is tagged as mine.
func TagViews(msgs []Message, viewerID uuid.UUID) []MessageView {
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, MessageView{
			Message: m,
			IsMine:  viewerID != uuid.Nil && m.AuthorID == viewerID,
		})
	}
	return views
}
