package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pruebachat/chatcore/internal/models"
)

type MessageStore struct {
	mu       sync.RWMutex
	messages []models.Message
	nextID   int64

	// appendCalls counts every Append that reached this store. Tests use it
	// to prove that rejected writes never touch the log.
	appendCalls int
}

func NewMessageStore() *MessageStore {
	return &MessageStore{nextID: 1}
}

func (s *MessageStore) Append(ctx context.Context, authorID uuid.UUID, kind models.MessageKind, body string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendCalls++

	msg := models.Message{
		ID:       s.nextID,
		AuthorID: authorID,
		Kind:     kind,
		Body:     body,
		SentAt:   time.Now(),
	}
	s.nextID++
	s.messages = append(s.messages, msg)

	copied := msg
	return &copied, nil
}

func (s *MessageStore) ListRecent(ctx context.Context, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Appends hold the lock while assigning id and timestamp, so the slice
	// is already in (sent_at, id) ascending order.
	msgs := s.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// AppendCalls reports how many Append calls reached the store.
func (s *MessageStore) AppendCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appendCalls
}
