package ports

import (
	"context"

	"github.com/flowforge/session-gateway/internal/core/domain"
)

// LedgerRepository persists the credit audit journal.
type LedgerRepository interface {
	Insert(ctx context.Context, entry *domain.LedgerEntry) error
	ListByUser(ctx context.Context, userID string, limit int64) ([]domain.LedgerEntry, error)
}

// LedgerRecorder accepts journal entries asynchronously. Recording never
// fails the credit operation that produced the entry.
type LedgerRecorder interface {
	Record(entry domain.LedgerEntry)
}
