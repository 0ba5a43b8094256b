package main

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegisterUnregisterPresence(t *testing.T) {
	r := NewRegistry()
	c1 := newTestClient("u1", "c1", 1)
	c2 := newTestClient("u1", "c2", 1)

	if !r.Register(c1) {
		t.Fatal("first connection should bring u1 online")
	}
	if !r.IsOnline("u1") {
		t.Fatal("u1 should be online")
	}

	// Same connection again is a no-op.
	if r.Register(c1) {
		t.Fatal("re-registering c1 must not report a membership change")
	}
	if got := len(r.Connections("u1")); got != 1 {
		t.Fatalf("connections = %d, want 1", got)
	}

	// Second device: still online, no membership change.
	if r.Register(c2) {
		t.Fatal("second connection must not report a membership change")
	}
	if got := len(r.Connections("u1")); got != 2 {
		t.Fatalf("connections = %d, want 2", got)
	}

	removed, offline := r.Unregister("u1", "c1")
	if !removed || offline {
		t.Fatalf("unregister c1 = (%v, %v), want (true, false)", removed, offline)
	}
	if !r.IsOnline("u1") {
		t.Fatal("u1 should stay online with one connection left")
	}

	// Duplicate close event.
	removed, offline = r.Unregister("u1", "c1")
	if removed || offline {
		t.Fatalf("duplicate unregister = (%v, %v), want (false, false)", removed, offline)
	}

	removed, offline = r.Unregister("u1", "c2")
	if !removed || !offline {
		t.Fatalf("unregister c2 = (%v, %v), want (true, true)", removed, offline)
	}
	if r.IsOnline("u1") {
		t.Fatal("u1 should be offline")
	}
}

func TestUnregisterUnknownUser(t *testing.T) {
	r := NewRegistry()
	removed, offline := r.Unregister("nobody", "c1")
	if removed || offline {
		t.Fatalf("unregister unknown = (%v, %v), want (false, false)", removed, offline)
	}
}

func TestSnapshotOnline(t *testing.T) {
	r := NewRegistry()
	r.Register(newTestClient("u2", "c1", 1))
	r.Register(newTestClient("u1", "c2", 1))
	r.Register(newTestClient("u1", "c3", 1))

	us := r.SnapshotOnline()
	if !equalUsers(us, []string{"u1", "u2"}) {
		t.Fatalf("snapshot = %v, want [u1 u2]", us)
	}
}

func TestRegistryConcurrentChurn(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i)
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("c%d-%d", i, j)
				c := newTestClient(user, id, 1)
				r.Register(c)
				if !r.IsOnline(user) {
					t.Error("user offline while holding a connection")
					return
				}
				r.SnapshotOnline()
				r.Unregister(user, id)
			}
		}(i)
	}
	wg.Wait()

	if us := r.SnapshotOnline(); len(us) != 0 {
		t.Fatalf("snapshot after churn = %v, want empty", us)
	}
}
