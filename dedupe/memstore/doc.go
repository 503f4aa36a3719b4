// Package memstore provides an in-memory [github.com/sunder-dev/rundedupe/dedupe.Persistence],
// suitable for tests and single-process use. Records are never shared across
// processes, so it provides no cross-process deduplication guarantee - only
// the same-process, same-Store behavior the dedupe package's protocol relies
// on elsewhere.
package memstore
