package dedupe

import (
	"context"
	"time"
)

// Persistence is the storage contract the deduplication protocol is built
// on top of. Implementations must be safe for concurrent invocation from
// many processes; atomicity is required per operation, not across
// operations.
//
// See [github.com/sunder-dev/rundedupe/dedupe/memstore] and
// [github.com/sunder-dev/rundedupe/dedupe/dynamostore] for implementations.
type Persistence[Id comparable, ProcessorId comparable, A any] interface {
	// Claim atomically sets Record.StartedAt = now on (id, processorID) only
	// if no StartedAt currently exists, and always returns the row's state as
	// observed before this call's write. A nil Record with a nil error means
	// no row existed, and this call created one - the caller is the runner.
	Claim(ctx context.Context, id Id, processorID ProcessorId, now time.Time) (*Record[Id, ProcessorId, A], error)

	// Complete unconditionally writes CompletedAt = now, Memoized = value,
	// and, if ttl is non-nil, ExpiresOn = now.Add(*ttl).
	Complete(ctx context.Context, id Id, processorID ProcessorId, now time.Time, ttl *time.Duration, value A) error

	// Invalidate unconditionally deletes the row for (id, processorID).
	// Deleting a row that doesn't exist is not an error.
	Invalidate(ctx context.Context, id Id, processorID ProcessorId) error
}
