// Package middleware exposes the request gate for net/http services built on
// goSession.Authority.
//
// [Guard] reads the Authorization header, calls Authority.Validate and injects
// the validated [goSession.Subject] into the request context, where handlers
// read it back with [SubjectFromContext]. Fiber applications use the
// fibergate subpackage instead.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to the Authority).
//   - Access Redis.
//   - Tell the client which of the validation failures occurred.
package middleware
