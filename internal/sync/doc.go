// Package sync implements delta-query reconciliation between Microsoft 365
// collections and the local cache.
//
// The package contains the protocol-independent half of the mirror:
//
//   - [Engine] drives one refresh pass per collection: it loads the stored
//     delta token, pages through the change feed, hands every remote record
//     to the [Reconciler], and commits the new delta token only after the
//     whole pass succeeded.
//   - [Reconciler] classifies each remote record against the local cache as
//     created, modified, or removed, merging server-owned fields without
//     clobbering local-only state.
//   - [FetchGuard] de-duplicates concurrent downloads of the same large
//     sub-resource (full message bodies).
//
// Protocol specifics live behind the [Source] and [Pusher] interfaces,
// implemented by the graph package. Persistence lives behind [Cache] and
// [TokenStore], implemented by the store package.
//
// # Delta tokens
//
// A delta token is an opaque server cursor valid only for the collection it
// was issued for. An empty token means "full sync". The engine installs a new
// token only after a pass completed without error, so a crash or cancellation
// mid-pass re-runs from the previous token. When the server reports the token
// as expired (410 Gone on Microsoft Graph) the engine evicts the collection's
// cached records, clears the token, and restarts the pass from scratch.
package sync
