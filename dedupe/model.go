package dedupe

import "time"

// Record is the persisted state of a signal under a processor scope,
// uniquely keyed by the composite (ID, ProcessorID).
//
// StartedAt is set once, at claim, and is monotonically immutable
// thereafter: a conditional write only installs it if absent. CompletedAt
// and Memoized are set together, by whichever call to
// [Persistence.Complete] lands for this key; neither is set without the
// other. ExpiresOn, when set, is intended to be >= CompletedAt.
type Record[Id comparable, ProcessorId comparable, A any] struct {
	ID          Id
	ProcessorID ProcessorId
	StartedAt   time.Time
	CompletedAt *time.Time
	ExpiresOn   *time.Time
	Memoized    *A
}

func (r *Record[Id, ProcessorId, A]) isCompleted() bool {
	return r.CompletedAt != nil
}

func (r *Record[Id, ProcessorId, A]) isExpired(now time.Time) bool {
	return r.ExpiresOn != nil && !now.Before(*r.ExpiresOn)
}

func (r *Record[Id, ProcessorId, A]) isTimeout(now time.Time, maxProcessingTime time.Duration) bool {
	if r.isCompleted() {
		return false
	}
	return now.Sub(r.StartedAt) >= maxProcessingTime
}

// Status classifies a Record (or its absence) at a point in time.
func (r *Record[Id, ProcessorId, A]) Status(now time.Time, maxProcessingTime time.Duration) Status[A] {
	if r == nil {
		return Status[A]{Kind: StatusNotStarted}
	}
	// Checked first: a completed record is never reported as expired or timed
	// out, even if its TTL has elapsed - the backend may not have swept it yet.
	if r.isCompleted() {
		var memoized A
		if r.Memoized != nil {
			memoized = *r.Memoized
		}
		return Status[A]{Kind: StatusCompleted, Memoized: memoized}
	}
	if r.isExpired(now) {
		return Status[A]{Kind: StatusExpired}
	}
	if r.isTimeout(now, maxProcessingTime) {
		return Status[A]{Kind: StatusTimeout}
	}
	return Status[A]{Kind: StatusRunning}
}

// StatusKind enumerates the lifecycle states of a signal.
type StatusKind int

const (
	// StatusNotStarted means no record was observed. Only produced when
	// classifying a nil Record.
	StatusNotStarted StatusKind = iota
	// StatusRunning means a claim exists, hasn't completed, and hasn't
	// exceeded the configured max processing time.
	StatusRunning
	// StatusCompleted means the claimant finished; Status.Memoized holds its
	// result.
	StatusCompleted
	// StatusTimeout means the claimant hasn't completed within the configured
	// max processing time.
	StatusTimeout
	// StatusExpired means the record's TTL has elapsed.
	StatusExpired
)

// String implements fmt.Stringer.
func (k StatusKind) String() string {
	switch k {
	case StatusNotStarted:
		return "not_started"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusTimeout:
		return "timeout"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Status is the lifecycle state derived from a Record and the current
// instant, by [Record.Status].
type Status[A any] struct {
	Kind StatusKind
	// Memoized is meaningful only when Kind == StatusCompleted.
	Memoized A
}
