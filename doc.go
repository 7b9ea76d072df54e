// Package goSession is a session and token authority backed by Redis. It
// issues signed bearer tokens, validates them against revocation state on
// every request, revokes one or all sessions of a subject, and fronts the
// primary profile store with a short-lived profile cache.
//
// An [Authority] is assembled with [New] and [Builder.Build] and is safe for
// concurrent use. All collaborators are injected; the package holds no
// global state.
//
// # Failure policy
//
// Validate fails closed: when the session store cannot answer, the token is
// rejected with [ErrStoreUnavailable]. GetProfile fails open: cache failures
// fall back to the profile store.
//
// # What this package must NOT do
//
//   - Read or write session store keys outside package session.
//   - Put token strings or secrets into logs, events or the profile cache.
//   - Block a session operation on notification delivery.
package goSession
