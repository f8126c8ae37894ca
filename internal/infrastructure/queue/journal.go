package queue

import (
	"context"
	"hash/fnv"

	"github.com/rs/zerolog"

	"github.com/flowforge/session-gateway/internal/api/metrics"
	"github.com/flowforge/session-gateway/internal/core/domain"
	"github.com/flowforge/session-gateway/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Journal writes credit ledger entries asynchronously so a journal write
// never sits on the spend path. Entries are routed to a fixed set of workers
// by consistent hashing on the user id, preserving per-user ordering.
type Journal struct {
	workers []chan domain.LedgerEntry
	repo    ports.LedgerRepository
	log     zerolog.Logger
}

// NewJournal creates a Journal with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewJournal(numWorkers int, repo ports.LedgerRepository, log zerolog.Logger) *Journal {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	j := &Journal{
		workers: make([]chan domain.LedgerEntry, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range j.workers {
		j.workers[i] = make(chan domain.LedgerEntry, channelBuffer)
	}
	return j
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (j *Journal) Start(ctx context.Context) {
	for i, ch := range j.workers {
		go j.runWorker(ctx, i, ch)
	}
}

// Record enqueues one ledger entry. The call is non-blocking up to
// channelBuffer capacity. Failures downstream are logged, never propagated;
// the journal is an audit trail, not the balance of record.
func (j *Journal) Record(entry domain.LedgerEntry) {
	j.workers[j.shardIndex(entry.UserID)] <- entry
	metrics.JournalQueueDepth.Inc()
}

// shardIndex maps a user id deterministically to a worker index.
func (j *Journal) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32()) % len(j.workers)
}

func (j *Journal) runWorker(ctx context.Context, id int, ch <-chan domain.LedgerEntry) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-ch:
			if !ok {
				return
			}
			metrics.JournalQueueDepth.Dec()
			if err := j.repo.Insert(ctx, &entry); err != nil {
				j.log.Error().Err(err).
					Str("user_id", entry.UserID).
					Str("kind", string(entry.Kind)).
					Int("worker_id", id).
					Msg("ledger write failed")
			}
		}
	}
}
