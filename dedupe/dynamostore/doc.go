// Package dynamostore provides a DynamoDB-backed
// [github.com/sunder-dev/rundedupe/dedupe.Persistence], using a single item
// per (id, processorId) pair, and the table's native conditional-update and
// TTL features to implement the protocol's claim-or-observe write and
// record expiry.
//
// The wire format mirrors the reference implementation this package was
// ported from: id and processorId are JSON-encoded into the partition and
// sort key strings; startedAt and completedAt are stored as Number
// attributes in milliseconds since the Unix epoch; expiresOn is a Number
// attribute in seconds since the epoch, matching the unit DynamoDB's native
// TTL feature expects; memoized is a JSON-encoded String attribute.
package dynamostore
