package dedupe

import "time"

// Config carries a Coordinator's immutable configuration.
type Config[ProcessorId any] struct {
	// ProcessorID is this coordinator's deduplication namespace. Two
	// coordinators sharing a ProcessorID (typically a stable per-service
	// identifier, not a per-instance one) dedupe against each other; distinct
	// ProcessorID values never interfere, by design.
	ProcessorID ProcessorId

	// MaxProcessingTime bounds how long a Running record is considered
	// authoritative, before a new caller may take over. A value of 0 permits
	// immediate takeover of any uncompleted record.
	MaxProcessingTime time.Duration

	// TTL, if non-nil, is passed to Persistence.Complete as the record's
	// time-to-live. A nil TTL yields records that persist indefinitely.
	TTL *time.Duration

	// PollStrategy governs how a duplicate waits on a concurrently Running
	// peer. Must be constructed via PollLinear or PollBackoff.
	PollStrategy PollStrategy
}
