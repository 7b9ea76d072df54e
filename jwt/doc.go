// Package jwt issues and verifies the bearer tokens handed to clients. It is
// pure: no network or store access happens here, so revocation state must be
// checked by the caller after a successful Parse.
package jwt
