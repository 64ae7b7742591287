// Package api talks to the storefront backend over HTTP.
//
// Transport performs one network call with a 10 second deadline, JSON
// negotiation and a classified failure taxonomy (Timeout,
// NetworkUnavailable, ProtocolMismatch, RemoteRejected, Unauthenticated).
// Client is the typed endpoint surface on top of it.
//
// This layer is deliberately dumb: no caching, no retries, no
// deduplication. Those concerns live in pkg/resource, pkg/dedup and
// pkg/optimistic, which compose over Client.
package api
