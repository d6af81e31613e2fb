package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pruebachat/chatcore/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func (s *MessageStore) Append(ctx context.Context, authorID uuid.UUID, kind models.MessageKind, body string) (*models.Message, error) {
	// Messages use bigserial, so we don't pass an ID. Postgres generates it
	// along with sent_at — the server clock, not the client's, is the
	// ordering authority. RETURNING gives both back.
	query := `
		INSERT INTO messages (author_id, kind, body, sent_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, author_id, kind, body, sent_at`

	var msg models.Message
	err := s.pool.QueryRow(ctx, query, authorID, kind, body).Scan(
		&msg.ID,
		&msg.AuthorID,
		&msg.Kind,
		&msg.Body,
		&msg.SentAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

func (s *MessageStore) ListRecent(ctx context.Context, limit int) ([]models.Message, error) {
	// Two-step ordering: the inner query picks the newest `limit` rows, the
	// outer one flips them back to ascending. id is monotonically increasing
	// in assignment order, so (sent_at, id) ascending is the canonical log
	// order with the serial as tie-break for equal timestamps.
	query := `
		SELECT id, author_id, kind, body, sent_at
		FROM (
			SELECT id, author_id, kind, body, sent_at
			FROM messages
			ORDER BY sent_at DESC, id DESC
			LIMIT $1
		) latest
		ORDER BY sent_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.AuthorID,
			&msg.Kind,
			&msg.Body,
			&msg.SentAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}
