// Package statestore persists feed state documents in Cloudflare Workers KV.
//
// The client resolves the namespace by name when no id is configured, reads
// and writes whole JSON blobs by key, and retries failed writes with capped
// exponential backoff and jitter before falling back to the wrangler CLI. A
// write that exhausts every path is returned as an error the pipeline treats
// as fatal: continuing on possibly-unpersisted state risks re-billing
// synthesis on the next run.
package statestore
