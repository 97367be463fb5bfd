// Package topic implements topic subscriptions with incremental-patch
// reconciliation.
//
// Each topic is a named, independently cached JSON document kept current by
// full replacements and ordered patch deltas. Patch application is
// all-or-nothing: a failed delta invalidates the cache, and every delta is
// dropped until the next full payload, so subscribers never observe a stale
// or partially patched document.
package topic
