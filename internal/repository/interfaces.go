package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pruebachat/chatcore/internal/models"
)

// Why context.Context as the first parameter on every method?
//   - It's idiomatic Go for anything that does I/O.
//   - It carries deadlines: if the HTTP request is cancelled, the DB query
//     gets cancelled too. No wasted work.

// UserRepository handles account persistence for the identity service.
type UserRepository interface {
	// Create inserts a new user and returns it with ID and CreatedAt
	// populated. Fails if the email is already registered.
	Create(ctx context.Context, email, passwordHash string) (*models.User, error)

	// GetByEmail looks up a user by email. Returns nil, nil if not found —
	// login must not be able to distinguish "no such user" from "wrong
	// password" by error shape alone.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns a user by ID. Returns nil, nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// MessageRepository persists the shared, append-only room log. The log is the
// only ordering authority: sent_at is assigned at insert, and the serial id
// breaks ties in assignment order. Clients never coordinate ordering among
// themselves.
type MessageRepository interface {
	// Append persists one message and returns it with ID and SentAt
	// populated. Content validation happens above this layer.
	Append(ctx context.Context, authorID uuid.UUID, kind models.MessageKind, body string) (*models.Message, error)

	// ListRecent returns the latest `limit` messages in ascending order
	// (oldest first): sent_at ascending, id ascending as tie-break.
	// Returns empty slice (not nil) so JSON serializes to [] not null.
	ListRecent(ctx context.Context, limit int) ([]models.Message, error)
}
