package ws

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type presenceWrite struct {
	userID uint
	online bool
	at     time.Time
}

type fakePresenceStore struct {
	mu       sync.Mutex
	writes   []presenceWrite
	calls    int
	failNext int
}

func (f *fakePresenceStore) UpdatePresence(userID uint, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failNext > 0 {
		f.failNext--
		return errors.New("db down")
	}
	f.writes = append(f.writes, presenceWrite{userID: userID, online: online, at: time.Now()})
	return nil
}

func (f *fakePresenceStore) all() []presenceWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]presenceWrite, len(f.writes))
	copy(out, f.writes)
	return out
}

func (f *fakePresenceStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// runTracker starts the tracker and returns a function that stops it and
// waits for the backlog to drain.
func runTracker(t *PresenceTracker) func() {
	done := make(chan struct{})
	go func() {
		t.Run()
		close(done)
	}()
	return func() {
		t.Stop()
		<-done
	}
}

// A connect followed by a disconnect must leave the user offline, with
// last-seen timestamps in non-decreasing order.
func TestPresence_ConnectThenDisconnect(t *testing.T) {
	store := &fakePresenceStore{}
	tracker := NewPresenceTracker(store)
	drain := runTracker(tracker)

	tracker.MarkOnline(7)
	waitFor(t, func() bool { return len(store.all()) == 1 })
	tracker.MarkOffline(7)
	drain()

	writes := store.all()
	if len(writes) != 2 {
		t.Fatalf("presence writes = %d, want 2", len(writes))
	}
	if !writes[0].online || writes[0].userID != 7 {
		t.Errorf("first write = %+v, want online for user 7", writes[0])
	}
	if writes[1].online || writes[1].userID != 7 {
		t.Errorf("second write = %+v, want offline for user 7", writes[1])
	}
	if writes[1].at.Before(writes[0].at) {
		t.Error("last-seen timestamps must be non-decreasing")
	}
}

func TestPresence_WriteFailureSwallowed(t *testing.T) {
	store := &fakePresenceStore{failNext: 1}
	tracker := NewPresenceTracker(store)
	drain := runTracker(tracker)

	// The first write fails, is logged and dropped; the next one still
	// goes through.
	tracker.MarkOnline(1)
	waitFor(t, func() bool { return store.callCount() == 1 })
	tracker.MarkOffline(1)
	drain()

	writes := store.all()
	if len(writes) != 1 {
		t.Fatalf("presence writes = %d, want 1", len(writes))
	}
	if writes[0].online {
		t.Errorf("surviving write = %+v, want offline", writes[0])
	}
}

func TestPresence_EnqueueNeverBlocks(t *testing.T) {
	store := &fakePresenceStore{}
	tracker := NewPresenceTracker(store)
	// Run is deliberately not started: states pile up per user instead of
	// blocking the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			tracker.MarkOnline(uint(i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked on a backlog")
	}
}

// An offline update registered behind a large backlog still lands: newer
// states overwrite older ones per user, nothing is dropped, so a user never
// gets stuck online in the database.
func TestPresence_OfflineSurvivesBacklog(t *testing.T) {
	store := &fakePresenceStore{}
	tracker := NewPresenceTracker(store)

	tracker.MarkOnline(1)
	for i := uint(2); i <= 1000; i++ {
		tracker.MarkOnline(i)
	}
	tracker.MarkOffline(1)

	drain := runTracker(tracker)
	drain()

	var last *presenceWrite
	for _, w := range store.all() {
		if w.userID == 1 {
			last = &presenceWrite{userID: w.userID, online: w.online, at: w.at}
		}
	}
	if last == nil {
		t.Fatal("no presence write recorded for user 1")
	}
	if last.online {
		t.Error("user 1 must end up offline despite the backlog")
	}
}
