package chat

import "testing"

func drained(a *Autoscroll) bool {
	select {
	case <-a.Requests():
		return true
	default:
		return false
	}
}

func TestAutoscroll_GrowthTriggersOneRequest(t *testing.T) {
	a := NewAutoscroll()

	a.Observe(1)
	if !drained(a) {
		t.Fatal("growth should request a scroll")
	}
	if drained(a) {
		t.Fatal("one growth, one request")
	}
}

func TestAutoscroll_RapidBatchesCoalesce(t *testing.T) {
	a := NewAutoscroll()

	a.Observe(1)
	a.Observe(2)
	a.Observe(5)

	if !drained(a) {
		t.Fatal("expected a pending scroll request")
	}
	if drained(a) {
		t.Fatal("rapid batches must coalesce into a single request")
	}
}

func TestAutoscroll_DeletionsDoNotTrigger(t *testing.T) {
	a := NewAutoscroll()

	a.Observe(3)
	_ = drained(a)

	a.Observe(2) // deletion
	a.Observe(2) // no change
	if drained(a) {
		t.Fatal("shrinking or unchanged timelines must not scroll")
	}

	a.Observe(4)
	if !drained(a) {
		t.Fatal("growth after a deletion should scroll again")
	}
}
