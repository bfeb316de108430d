package live

import (
	"context"
	"testing"
	"time"
)

func TestTrackerRegisterUnregister(t *testing.T) {
	tracker := NewTracker()
	unregister := tracker.Register("s1", Handle{})
	if tracker.Count() != 1 {
		t.Fatalf("Count = %d, want 1", tracker.Count())
	}
	unregister()
	if tracker.Count() != 0 {
		t.Errorf("Count = %d after unregister", tracker.Count())
	}
	// Unregister is idempotent.
	unregister()
}

func TestTrackerReregisterEvictsOld(t *testing.T) {
	tracker := NewTracker()
	tracker.Register("s1", Handle{})
	unregister := tracker.Register("s1", Handle{})
	if tracker.Count() != 1 {
		t.Fatalf("Count = %d, want 1 after re-register", tracker.Count())
	}
	unregister()
	if tracker.Count() != 0 {
		t.Errorf("Count = %d", tracker.Count())
	}
}

func TestTrackerCancelAll(t *testing.T) {
	tracker := NewTracker()
	canceled := make(map[string]bool)
	tracker.Register("s1", Handle{Cancel: func() { canceled["s1"] = true }})
	tracker.Register("s2", Handle{Cancel: func() { canceled["s2"] = true }})

	if n := tracker.CancelAll(); n != 2 {
		t.Errorf("CancelAll = %d, want 2", n)
	}
	if !canceled["s1"] || !canceled["s2"] {
		t.Errorf("canceled = %v", canceled)
	}
}

func TestTrackerNotifyAll(t *testing.T) {
	tracker := NewTracker()
	var got []string
	tracker.Register("s1", Handle{Notify: func(m string) error {
		got = append(got, m)
		return nil
	}})
	tracker.Register("s2", Handle{}) // no notify func

	if n := tracker.NotifyAll("draining"); n != 1 {
		t.Errorf("NotifyAll = %d, want 1", n)
	}
	if len(got) != 1 || got[0] != "draining" {
		t.Errorf("got = %v", got)
	}
}

func TestTrackerWait(t *testing.T) {
	tracker := NewTracker()
	unregister := tracker.Register("s1", Handle{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if tracker.Wait(ctx) {
		t.Error("Wait should time out while a session is registered")
	}

	unregister()
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if !tracker.Wait(ctx2) {
		t.Error("Wait should return once all sessions unregister")
	}
}
