package jobs

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"transcript-server/internal/domain"
)

type recordingListener struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recordingListener) StatusChanged(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

// TestStatusStorePutReplaces verifies last-writer-wins semantics.
func TestStatusStorePutReplaces(t *testing.T) {
	store := NewStatusStore()
	store.Put("u", "p", domain.Ongoing("conversion started"))
	store.Put("u", "p", domain.Failed("conversion failed: bad input"))

	got, ok := store.Get("u", "p")
	if !ok {
		t.Fatal("expected entry")
	}
	if got != domain.Failed("conversion failed: bad input") {
		t.Fatalf("status = %+v", got)
	}
	if _, ok := store.Get("other", "p"); ok {
		t.Fatal("unexpected entry for other user")
	}
}

// TestStatusStoreReconcile verifies persisted and succeeded entries are dropped.
func TestStatusStoreReconcile(t *testing.T) {
	listener := &recordingListener{}
	store := NewStatusStore(WithListener(listener))
	store.Put("u", "p1", domain.Ongoing("transcription started"))
	store.Put("u", "p2", domain.Succeeded(""))
	store.Put("u", "p3", domain.Failed("x"))

	view := store.Reconcile("u", map[string]struct{}{"p1": {}})
	if len(view) != 1 {
		t.Fatalf("len = %d, want 1: %+v", len(view), view)
	}
	if view["p3"] != domain.Failed("x") {
		t.Fatalf("p3 = %+v", view["p3"])
	}

	snapshot := store.Snapshot("u")
	if len(snapshot) != 1 {
		t.Fatalf("store should keep only p3, got %+v", snapshot)
	}

	removed := 0
	for _, c := range listener.changes {
		if c.Removed {
			removed++
		}
	}
	if removed != 2 {
		t.Fatalf("removed notifications = %d, want 2", removed)
	}
}

// TestStatusStoreSucceededGrace verifies succeeded entries stay visible inside the grace window.
func TestStatusStoreSucceededGrace(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewStatusStore(
		WithSucceededGrace(10*time.Second),
		WithClock(func() time.Time { return now }),
	)
	store.Put("u", "p", domain.Succeeded(""))

	now = now.Add(5 * time.Second)
	if view := store.Reconcile("u", nil); len(view) != 1 {
		t.Fatalf("expected succeeded entry inside grace, got %+v", view)
	}

	now = now.Add(5 * time.Second)
	if view := store.Reconcile("u", nil); len(view) != 0 {
		t.Fatalf("expected entry dropped after grace, got %+v", view)
	}
}

// TestStatusStoreRemove verifies explicit removal and its notification.
func TestStatusStoreRemove(t *testing.T) {
	listener := &recordingListener{}
	store := NewStatusStore(WithListener(listener))
	store.Put("u", "p", domain.Ongoing("queued"))

	if !store.Remove("u", "p") {
		t.Fatal("expected removal")
	}
	if store.Remove("u", "p") {
		t.Fatal("second removal should report false")
	}
	if len(listener.changes) != 2 || !listener.changes[1].Removed {
		t.Fatalf("unexpected changes: %+v", listener.changes)
	}
}

// TestStatusStoreConcurrentAccess exercises writers and reconcilers across users.
func TestStatusStoreConcurrentAccess(t *testing.T) {
	store := NewStatusStore()
	var wg sync.WaitGroup
	for u := 0; u < 4; u++ {
		user := fmt.Sprintf("user-%d", u)
		for p := 0; p < 10; p++ {
			project := fmt.Sprintf("p-%d", p)
			wg.Add(2)
			go func() {
				defer wg.Done()
				store.Put(user, project, domain.Ongoing("conversion started"))
				store.Put(user, project, domain.Failed("x"))
			}()
			go func() {
				defer wg.Done()
				_ = store.Reconcile(user, nil)
				_ = store.Snapshot(user)
			}()
		}
	}
	wg.Wait()

	for u := 0; u < 4; u++ {
		view := store.Reconcile(fmt.Sprintf("user-%d", u), nil)
		if len(view) != 10 {
			t.Fatalf("user-%d: len = %d, want 10", u, len(view))
		}
		for project, status := range view {
			if status.Stage != domain.StageFailed {
				t.Fatalf("%s stage = %s, want failed", project, status.Stage)
			}
		}
	}
}
