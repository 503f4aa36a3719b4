// Package dedupe provides best-effort exactly-once execution of an
// effectful operation, keyed by a caller-supplied signal identifier, across
// many processes sharing a strongly-consistent key-value store.
//
// Wrap an operation with [Coordinator.Once]; across all cooperating
// processes configured with the same ProcessorId, the operation runs to
// completion at most once per signal within the record's lifetime, and late
// duplicates receive the memoized result of the original run.
//
// The protocol composes three pieces: a [Persistence] backend providing a
// conditional claim-or-observe write, a pure classifier mapping a [Record]
// and the current time to a [Status], and a [PollStrategy] describing how a
// duplicate waits on a concurrently running peer before taking over.
//
// See also [github.com/sunder-dev/rundedupe/dedupe/memstore] for a reference
// in-memory [Persistence], and
// [github.com/sunder-dev/rundedupe/dedupe/dynamostore] for a DynamoDB-backed
// one.
//
// This is a best-effort exactly-once guarantee, not a strict one: it relies
// on at-least-once delivery and a process that may crash between claiming
// and completing a signal. See [Coordinator] for the full protocol, and its
// documented edge cases.
package dedupe
