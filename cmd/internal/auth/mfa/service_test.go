package mfa

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"waybill/cmd/internal/cache"
)

func newTestService() *Service {
	return NewService(DefaultConfig(), cache.NewMemory(), nil)
}

func wrongCode(code string) string {
	if code == "123456" {
		return "654321"
	}
	return "123456"
}

func TestVerify_CorrectCodeSucceedsOnce(t *testing.T) {
	svc := newTestService()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	code, err := svc.Initiate(ctx, now, "u1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	if err := svc.Verify(ctx, now.Add(time.Minute), "u1", code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// The challenge is consumed on success.
	if err := svc.Verify(ctx, now.Add(time.Minute), "u1", code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid after consumption, got %v", err)
	}
}

func TestVerify_AttemptExhaustion(t *testing.T) {
	svc := newTestService()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	code, err := svc.Initiate(ctx, now, "u1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// Five wrong attempts exhaust the challenge.
	for i := 0; i < 5; i++ {
		if err := svc.Verify(ctx, now.Add(time.Minute), "u1", wrongCode(code)); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("attempt %d: expected ErrCodeInvalid, got %v", i+1, err)
		}
	}

	// The correct code on the sixth attempt is still rejected.
	if err := svc.Verify(ctx, now.Add(time.Minute), "u1", code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected lockout on sixth attempt, got %v", err)
	}

	// A fresh initiate resets the lockout.
	code2, err := svc.Initiate(ctx, now.Add(2*time.Minute), "u1")
	if err != nil {
		t.Fatalf("re-initiate: %v", err)
	}
	if err := svc.Verify(ctx, now.Add(3*time.Minute), "u1", code2); err != nil {
		t.Fatalf("verify after re-initiate: %v", err)
	}
}

func TestVerify_ConcurrentAttemptsAllCount(t *testing.T) {
	svc := newTestService()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	code, err := svc.Initiate(ctx, now, "u1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// Racing wrong-code verifies must each consume an attempt; a shared
	// read-modify-write would let them all charge the same one.
	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.Verify(ctx, now.Add(time.Minute), "u1", wrongCode(code))
		}()
	}
	wg.Wait()

	// Far past the attempt bound, so the correct code is locked out.
	if err := svc.Verify(ctx, now.Add(time.Minute), "u1", code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected lockout after %d concurrent attempts, got %v", workers, err)
	}
}

func TestVerify_ExpiredChallenge(t *testing.T) {
	svc := newTestService()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	code, err := svc.Initiate(ctx, now, "u1")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	late := now.Add(6 * time.Minute)
	if err := svc.Verify(ctx, late, "u1", code); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid after expiry, got %v", err)
	}
}

func TestVerify_NoChallenge(t *testing.T) {
	svc := newTestService()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := svc.Verify(context.Background(), now, "u1", "123456"); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid without challenge, got %v", err)
	}
}

func TestInitiate_OverwritesPriorChallenge(t *testing.T) {
	svc := newTestService()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	code1, err := svc.Initiate(ctx, now, "u1")
	if err != nil {
		t.Fatalf("initiate 1: %v", err)
	}
	code2, err := svc.Initiate(ctx, now.Add(time.Minute), "u1")
	if err != nil {
		t.Fatalf("initiate 2: %v", err)
	}

	// The first code is dead once a new challenge exists, even if the codes
	// happen to collide the second challenge is the only live one.
	if code1 != code2 {
		if err := svc.Verify(ctx, now.Add(2*time.Minute), "u1", code1); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("expected stale code rejection, got %v", err)
		}
	}
	if err := svc.Verify(ctx, now.Add(2*time.Minute), "u1", code2); err != nil {
		t.Fatalf("verify fresh code: %v", err)
	}
}

func TestInitiate_CodesWithinFixedRange(t *testing.T) {
	svc := newTestService()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 32; i++ {
		code, err := svc.Initiate(ctx, now, "u1")
		if err != nil {
			t.Fatalf("initiate: %v", err)
		}
		if len(code) != 6 || code[0] == '0' {
			t.Fatalf("code out of fixed range: %q", code)
		}
	}
}
