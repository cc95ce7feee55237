package driven

import (
	"context"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
)

// ChatStore persists completed question/answer exchanges.
// Exchanges are immutable once written.
type ChatStore interface {
	// SaveExchange stores a completed exchange with its source list.
	SaveExchange(ctx context.Context, exchange *domain.ChatExchange) error

	// RecentExchanges returns up to limit exchanges for the owner (and
	// document, when documentID is non-empty), most recent first.
	RecentExchanges(ctx context.Context, ownerID, documentID string, limit int) ([]domain.ChatExchange, error)
}
