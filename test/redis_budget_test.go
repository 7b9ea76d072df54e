//go:build integration
// +build integration

package test

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/session"
)

func TestPutSessionRedisBudget(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.counter.Reset()
	profile := session.Profile{ID: "u1", Name: "Ada", Email: "ada@example.com"}
	if err := h.store.PutSession(ctx, makeRecord("u1", "tok-1"), time.Hour, &profile, time.Minute); err != nil {
		t.Fatalf("PutSession: %v", err)
	}

	if got := h.counter.RoundTrips(); got != 1 {
		t.Errorf("PutSession used %d round-trips; budget is 1", got)
	}
}

func TestValidateRedisBudget(t *testing.T) {
	h := newHarness(t)
	issued := h.register(t, "budget@example.com")

	h.counter.Reset()
	if _, err := h.auth.Validate(context.Background(), issued.Token); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if got := h.counter.RoundTrips(); got != 1 {
		t.Errorf("Validate used %d round-trips; budget is 1", got)
	}
}

func TestMalformedTokenNeverReachesRedis(t *testing.T) {
	h := newHarness(t)

	h.counter.Reset()
	for _, token := range []string{"", "garbage", "a.b.c", "Bearer x"} {
		_, _ = h.auth.Validate(context.Background(), token)
	}

	if got := h.counter.RoundTrips(); got != 0 {
		t.Errorf("malformed tokens caused %d round-trips; want 0", got)
	}
}

func TestCachedProfileRedisBudget(t *testing.T) {
	h := newHarness(t)
	issued := h.register(t, "cache@example.com")

	h.counter.Reset()
	if _, err := h.auth.GetProfile(context.Background(), issued.Subject.ID); err != nil {
		t.Fatalf("GetProfile: %v", err)
	}

	if got := h.counter.RoundTrips(); got != 1 {
		t.Errorf("cached GetProfile used %d round-trips; budget is 1", got)
	}
}

func TestLogoutRedisBudget(t *testing.T) {
	h := newHarness(t)
	issued := h.register(t, "logout@example.com")

	h.counter.Reset()
	if err := h.auth.Logout(context.Background(), issued.Subject.ID, issued.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if got := h.counter.RoundTrips(); got != 1 {
		t.Errorf("Logout used %d round-trips; budget is 1", got)
	}
}

func TestRevokeAllRedisBudget(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, token := range []string{"a", "b", "c"} {
		if err := h.store.PutSession(ctx, makeRecord("u1", token), time.Hour, nil, 0); err != nil {
			t.Fatalf("PutSession: %v", err)
		}
	}

	h.counter.Reset()
	n, err := h.store.RevokeAll(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 revoked tokens, got %d", n)
	}

	// EVALSHA may fall back to EVAL on the first call.
	if got := h.counter.RoundTrips(); got > 2 {
		t.Errorf("RevokeAll used %d round-trips; budget is 2", got)
	}
}
