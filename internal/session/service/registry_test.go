package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"authcore/internal/autherr"
	"authcore/internal/session/domain"
	"authcore/internal/session/repository"
)

func newTestRegistry() (*Registry, *repository.MemoryRepository) {
	repo := repository.NewMemoryRepository()
	r := NewRegistry(repo, time.Second)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	r.nowF = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return r, repo
}

// failingRepo fails every call.
type failingRepo struct{ repository.MemoryRepository }

var errDB = errors.New("connection reset")

func (f *failingRepo) Create(context.Context, *domain.Session) error { return errDB }
func (f *failingRepo) GetByID(context.Context, string) (*domain.Session, error) {
	return nil, errDB
}
func (f *failingRepo) Invalidate(context.Context, string, time.Time) (bool, error) {
	return false, errDB
}
func (f *failingRepo) InvalidateAllByIdentity(context.Context, string, time.Time) (int64, error) {
	return 0, errDB
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	s, err := r.Create(ctx, "u1", domain.Device{Name: "laptop", IP: "10.0.0.1", UserAgent: "curl/8"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID == "" || !s.IsValid || s.InvalidatedAt != nil {
		t.Fatalf("new session = %+v, want valid with id", s)
	}
	got, err := r.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Device != "laptop" || got.IPAddress != "10.0.0.1" || got.UserAgent != "curl/8" {
		t.Errorf("Get = %+v", got)
	}
	if _, err := r.Get(ctx, "missing"); !errors.Is(err, autherr.ErrSessionNotFound) {
		t.Errorf("Get(missing) err = %v, want SessionNotFound", err)
	}
}

func TestRegistry_InvalidateIsMonotonic(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	s, _ := r.Create(ctx, "u1", domain.Device{})

	if err := r.Invalidate(ctx, s.ID); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	first, _ := r.Get(ctx, s.ID)
	if first.IsValid || first.InvalidatedAt == nil {
		t.Fatalf("after Invalidate = %+v", first)
	}
	stamp := *first.InvalidatedAt

	if err := r.Invalidate(ctx, s.ID); err != nil {
		t.Fatalf("second Invalidate: %v", err)
	}
	if _, err := r.InvalidateAllForIdentity(ctx, "u1"); err != nil {
		t.Fatalf("InvalidateAllForIdentity: %v", err)
	}
	again, _ := r.Get(ctx, s.ID)
	if again.IsValid {
		t.Error("invalidated session became valid")
	}
	if !again.InvalidatedAt.Equal(stamp) {
		t.Errorf("invalidated_at changed from %v to %v", stamp, *again.InvalidatedAt)
	}
	if active, _ := r.IsActive(ctx, s.ID); active {
		t.Error("IsActive = true for invalidated session")
	}
}

func TestRegistry_InvalidateUnknown(t *testing.T) {
	r, _ := newTestRegistry()
	if err := r.Invalidate(context.Background(), "nope"); !errors.Is(err, autherr.ErrSessionNotFound) {
		t.Errorf("Invalidate(unknown) err = %v, want SessionNotFound", err)
	}
}

func TestRegistry_InvalidateAllForIdentity(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = r.Create(ctx, "u1", domain.Device{})
	}
	other, _ := r.Create(ctx, "u2", domain.Device{})

	n, err := r.InvalidateAllForIdentity(ctx, "u1")
	if err != nil {
		t.Fatalf("InvalidateAllForIdentity: %v", err)
	}
	if n != 3 {
		t.Errorf("changed = %d, want 3", n)
	}
	active, _ := r.ListActive(ctx, "u1")
	if len(active) != 0 {
		t.Errorf("active sessions = %d, want 0", len(active))
	}
	if ok, _ := r.IsActive(ctx, other.ID); !ok {
		t.Error("other identity's session should remain valid")
	}
}

func TestRegistry_InvalidateOthers(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	keep, _ := r.Create(ctx, "u1", domain.Device{Name: "phone"})
	_, _ = r.Create(ctx, "u1", domain.Device{Name: "laptop"})
	_, _ = r.Create(ctx, "u1", domain.Device{Name: "tablet"})

	n, err := r.InvalidateOthers(ctx, "u1", keep.ID)
	if err != nil {
		t.Fatalf("InvalidateOthers: %v", err)
	}
	if n != 2 {
		t.Errorf("changed = %d, want 2", n)
	}
	active, _ := r.ListActive(ctx, "u1")
	if len(active) != 1 || active[0].ID != keep.ID {
		t.Errorf("active = %+v, want only %s", active, keep.ID)
	}
}

func TestRegistry_ListOrderedMostRecentFirst(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	a, _ := r.Create(ctx, "u1", domain.Device{Name: "a"})
	b, _ := r.Create(ctx, "u1", domain.Device{Name: "b"})
	c, _ := r.Create(ctx, "u1", domain.Device{Name: "c"})
	_ = r.Invalidate(ctx, b.ID)

	all, err := r.ListAll(ctx, "u1")
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 3 || all[0].ID != c.ID || all[1].ID != b.ID || all[2].ID != a.ID {
		t.Errorf("ListAll order = %v", ids(all))
	}
	active, _ := r.ListActive(ctx, "u1")
	if len(active) != 2 || active[0].ID != c.ID || active[1].ID != a.ID {
		t.Errorf("ListActive order = %v", ids(active))
	}
}

func TestRegistry_Delete(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	s, _ := r.Create(ctx, "u1", domain.Device{})
	if err := r.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := r.Get(ctx, s.ID); !errors.Is(err, autherr.ErrSessionNotFound) {
		t.Errorf("Get after Delete err = %v, want SessionNotFound", err)
	}
	if err := r.Delete(ctx, s.ID); !errors.Is(err, autherr.ErrSessionNotFound) {
		t.Errorf("second Delete err = %v, want SessionNotFound", err)
	}
}

func TestRegistry_ConcurrentCreateAndInvalidateAll(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.Create(ctx, "u1", domain.Device{})
		}()
		go func() {
			defer wg.Done()
			_, _ = r.InvalidateAllForIdentity(ctx, "u1")
		}()
	}
	wg.Wait()
	if _, err := r.InvalidateAllForIdentity(ctx, "u1"); err != nil {
		t.Fatalf("InvalidateAllForIdentity: %v", err)
	}
	active, _ := r.ListActive(ctx, "u1")
	if len(active) != 0 {
		t.Errorf("active = %d after final InvalidateAll, want 0", len(active))
	}
}

func TestRegistry_RepositoryFailureIsUnavailable(t *testing.T) {
	r := NewRegistry(&failingRepo{}, time.Second)
	ctx := context.Background()
	if _, err := r.Create(ctx, "u1", domain.Device{}); !errors.Is(err, autherr.ErrDependencyUnavailable) {
		t.Errorf("Create err = %v, want DependencyUnavailable", err)
	}
	if err := r.Invalidate(ctx, "s1"); !errors.Is(err, autherr.ErrDependencyUnavailable) {
		t.Errorf("Invalidate err = %v, want DependencyUnavailable", err)
	}
	if _, err := r.IsActive(ctx, "s1"); !errors.Is(err, autherr.ErrDependencyUnavailable) {
		t.Errorf("IsActive err = %v, want DependencyUnavailable", err)
	}
}

func ids(list []*domain.Session) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}
