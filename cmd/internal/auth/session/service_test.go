package session

import (
	"context"
	"testing"
	"time"
)

// fakeStore keeps rows in memory and mimics the atomic touch semantics of
// the Postgres store.
type fakeStore struct {
	rows   map[string]Row // keyed by token hash
	nextID int
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]Row{}}
}

func (f *fakeStore) Create(_ context.Context, now time.Time, userID string, dev DeviceContext, tokenHash string, mfaPending bool, expiresAt time.Time) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.nextID++
	id := string(rune('A' + f.nextID - 1))
	f.rows[tokenHash] = Row{
		ID:             id,
		UserID:         userID,
		TokenHash:      tokenHash,
		MFAPending:     mfaPending,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      expiresAt,
	}
	return id, nil
}

func (f *fakeStore) GetAndTouch(_ context.Context, now time.Time, tokenHash string, newExpiry time.Time) (Row, error) {
	if f.err != nil {
		return Row{}, f.err
	}
	row, ok := f.rows[tokenHash]
	if !ok || !row.ExpiresAt.After(now) {
		return Row{}, ErrSessionNotFound
	}
	row.LastAccessedAt = now
	row.ExpiresAt = newExpiry
	f.rows[tokenHash] = row
	return row, nil
}

func (f *fakeStore) Destroy(_ context.Context, tokenHash string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.rows, tokenHash)
	return nil
}

func (f *fakeStore) DestroyForUser(_ context.Context, userID string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for h, row := range f.rows {
		if row.UserID == userID {
			delete(f.rows, h)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) PromoteMFA(_ context.Context, now time.Time, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	for h, row := range f.rows {
		if row.ID == sessionID && row.ExpiresAt.After(now) {
			row.MFAPending = false
			f.rows[h] = row
			return nil
		}
	}
	return ErrSessionNotFound
}

func (f *fakeStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for h, row := range f.rows {
		if !row.ExpiresAt.After(now) {
			delete(f.rows, h)
			n++
		}
	}
	return n, nil
}

func newTestService(store Store) *Service {
	cfg := DefaultConfig()
	return NewService(cfg, store, nil)
}

func TestService_Resolve_SlidingExpiry(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, t0, "user-1", false, DeviceContext{})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.Token == "" {
		t.Fatalf("expected plain token")
	}
	if want := t0.Add(time.Hour); !issued.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, issued.ExpiresAt)
	}

	// Access at t0+59m keeps the session alive and pushes expiry to t0+1h59m.
	t1 := t0.Add(59 * time.Minute)
	row, err := svc.Resolve(ctx, t1, issued.Token)
	if err != nil {
		t.Fatalf("resolve at 59m: %v", err)
	}
	if want := t1.Add(time.Hour); !row.ExpiresAt.Equal(want) {
		t.Fatalf("expected slid expiry %v, got %v", want, row.ExpiresAt)
	}

	// Another access 59m later still works because the window slid.
	t2 := t1.Add(59 * time.Minute)
	if _, err := svc.Resolve(ctx, t2, issued.Token); err != nil {
		t.Fatalf("resolve at 1h58m: %v", err)
	}

	// A full idle hour with no access expires the session.
	t3 := t2.Add(time.Hour + time.Second)
	if _, err := svc.Resolve(ctx, t3, issued.Token); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound after idle window, got %v", err)
	}
}

func TestService_Resolve_ExpiredIndistinguishableFromMissing(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, t0, "user-1", false, DeviceContext{})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	late := t0.Add(2 * time.Hour)
	_, errExpired := svc.Resolve(ctx, late, issued.Token)
	_, errMissing := svc.Resolve(ctx, late, "no-such-token")

	if errExpired != ErrSessionNotFound || errMissing != ErrSessionNotFound {
		t.Fatalf("expected identical ErrSessionNotFound, got expired=%v missing=%v", errExpired, errMissing)
	}
}

func TestService_Resolve_FailsClosedOnStoreError(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, t0, "user-1", false, DeviceContext{})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	store.err = context.DeadlineExceeded
	if _, err := svc.Resolve(ctx, t0.Add(time.Minute), issued.Token); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound on store error, got %v", err)
	}
}

func TestService_DestroyForUser_RemovesAllSessions(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	i1, _ := svc.Issue(ctx, t0, "user-1", false, DeviceContext{})
	i2, _ := svc.Issue(ctx, t0, "user-1", false, DeviceContext{})
	i3, _ := svc.Issue(ctx, t0, "user-2", false, DeviceContext{})

	n, err := svc.DestroyForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("destroy for user: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 sessions destroyed, got %d", n)
	}

	if _, err := svc.Resolve(ctx, t0.Add(time.Minute), i1.Token); err != ErrSessionNotFound {
		t.Fatalf("expected session 1 gone, got %v", err)
	}
	if _, err := svc.Resolve(ctx, t0.Add(time.Minute), i2.Token); err != ErrSessionNotFound {
		t.Fatalf("expected session 2 gone, got %v", err)
	}
	if _, err := svc.Resolve(ctx, t0.Add(time.Minute), i3.Token); err != nil {
		t.Fatalf("expected other user's session to survive, got %v", err)
	}
}

func TestService_PromoteMFA(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, t0, "user-1", true, DeviceContext{})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	row, err := svc.Resolve(ctx, t0.Add(time.Minute), issued.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !row.MFAPending {
		t.Fatalf("expected mfa_pending session")
	}

	if err := svc.PromoteMFA(ctx, t0.Add(2*time.Minute), row.ID); err != nil {
		t.Fatalf("promote: %v", err)
	}

	row, err = svc.Resolve(ctx, t0.Add(3*time.Minute), issued.Token)
	if err != nil {
		t.Fatalf("resolve after promote: %v", err)
	}
	if row.MFAPending {
		t.Fatalf("expected promoted session")
	}
}

func TestService_Cleanup_RemovesOnlyExpired(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	old, _ := svc.Issue(ctx, t0, "user-1", false, DeviceContext{})
	fresh, _ := svc.Issue(ctx, t0.Add(2*time.Hour), "user-2", false, DeviceContext{})

	n, err := svc.Cleanup(ctx, t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row removed, got %d", n)
	}

	if _, err := svc.Resolve(ctx, t0.Add(2*time.Hour), old.Token); err != ErrSessionNotFound {
		t.Fatalf("expected old session gone, got %v", err)
	}
	if _, err := svc.Resolve(ctx, t0.Add(2*time.Hour+time.Minute), fresh.Token); err != nil {
		t.Fatalf("expected fresh session alive, got %v", err)
	}
}
