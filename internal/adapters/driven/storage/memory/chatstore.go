package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
)

// Ensure ChatStore implements the interface.
var _ driven.ChatStore = (*ChatStore)(nil)

// ChatStore is an in-memory implementation of driven.ChatStore.
type ChatStore struct {
	mu        sync.RWMutex
	exchanges []domain.ChatExchange
}

// NewChatStore creates a new in-memory chat store.
func NewChatStore() *ChatStore {
	return &ChatStore{}
}

// SaveExchange stores a completed exchange.
func (s *ChatStore) SaveExchange(_ context.Context, exchange *domain.ChatExchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = time.Now().UTC()
	}
	s.exchanges = append(s.exchanges, *exchange)
	return nil
}

// RecentExchanges returns up to limit exchanges, most recent first.
func (s *ChatStore) RecentExchanges(_ context.Context, ownerID, documentID string, limit int) ([]domain.ChatExchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.ChatExchange
	for _, ex := range s.exchanges {
		if ex.OwnerID != ownerID {
			continue
		}
		if documentID != "" && ex.DocumentID != documentID {
			continue
		}
		result = append(result, ex)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Len returns the number of stored exchanges.
func (s *ChatStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.exchanges)
}
