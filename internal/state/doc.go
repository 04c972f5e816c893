// Package state models the durable per-feed processing state.
//
// FeedState is the single JSON document persisted per feed: a map of entry
// identifiers to EntryState records, the cumulative synthesis-usage counter,
// and the sticky pending-deploy flag. Field names match the state blobs
// written by earlier versions of this pipeline, so existing documents load
// unchanged.
//
// All mutation happens through the named transition methods; callers must
// never poke fields directly, so the "done" invariant (uploaded URL present,
// feed updated, publication timestamp matching) stays checkable in one place.
package state
