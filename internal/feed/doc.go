// Package feed fetches the upstream article feed and decides which entries
// need work.
//
// Entries are normalized at ingestion: publication timestamps become RFC3339
// UTC strings (so string comparison orders them correctly regardless of the
// upstream offset notation) and the list is sorted oldest first. The entry
// identifier is a stable hash of the canonical article link, namespaced by
// feed slug; it keys both the durable state document and the remote audio
// object, making it the idempotency token for the whole pipeline.
package feed
