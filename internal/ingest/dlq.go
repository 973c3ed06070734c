package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/incident-evidence/internal/resilience"
)

// DefaultDLQCapacity bounds the in-memory dead letter queue so a sustained
// analytics outage can't grow it without limit.
const DefaultDLQCapacity = 500

// DeadLetterQueue holds resilience.DLQEntry records for analytics
// dispatches that failed, so an operator (or a future retry loop) can
// inspect and replay them. It never blocks or fails an ingest response;
// Coordinator only ever calls Add from a best-effort failure path.
type DeadLetterQueue struct {
	mu       sync.Mutex
	capacity int
	entries  []resilience.DLQEntry
}

// NewDeadLetterQueue constructs a queue with the given entry budget.
func NewDeadLetterQueue(capacity int) *DeadLetterQueue {
	if capacity <= 0 {
		capacity = DefaultDLQCapacity
	}
	return &DeadLetterQueue{capacity: capacity}
}

// Add records a failed dispatch, classifying err as transient or permanent
// via resilience.ClassifyError. The oldest entry is dropped once the queue
// is at capacity.
func (q *DeadLetterQueue) Add(incidentID, chunkText, failedPhase string, err error) resilience.DLQEntry {
	now := time.Now()
	entry := resilience.DLQEntry{
		ID:           uuid.New().String(),
		IncidentID:   incidentID,
		ChunkText:    chunkText,
		Error:        err.Error(),
		ErrorType:    resilience.ClassifyError(err),
		FailedPhase:  failedPhase,
		MaxRetries:   3,
		CreatedAt:    now,
		LastFailedAt: now,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.capacity {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
	return entry
}

// List returns entries matching filter, most recently failed last. An
// empty filter.ErrorType matches everything; filter.Limit <= 0 means no
// limit.
func (q *DeadLetterQueue) List(filter resilience.DLQFilter) []resilience.DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]resilience.DLQEntry, 0, len(q.entries))
	for _, e := range q.entries {
		if filter.ErrorType != "" && e.ErrorType != filter.ErrorType {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Len reports the current number of queued entries.
func (q *DeadLetterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
