package timerwheel

import "testing"

func TestAddFiresAtDelay(t *testing.T) {
	w := New()
	fired := false
	w.Add(1, 3, func() { fired = true }, nil)
	for i := 0; i < 2; i++ {
		w.Advance()
		if fired {
			t.Fatalf("fired early at tick %d", i+1)
		}
	}
	w.Advance()
	if !fired {
		t.Fatalf("expected fire at tick 3")
	}
}

func TestCancelSuppressesCallbackButReleaseRuns(t *testing.T) {
	w := New()
	fired := false
	released := false
	task := w.Add(1, 2, func() { fired = true }, func() { released = true })
	task.Cancel()
	w.Advance()
	w.Advance()
	if fired {
		t.Fatalf("cancelled task must not fire its action")
	}
	if !released {
		t.Fatalf("release must run unconditionally")
	}
}

func TestRefreshExtendsWithoutDuplicateFire(t *testing.T) {
	w := New()
	count := 0
	w.Add(7, 2, func() { count++ }, nil)
	w.Advance() // tick 1: not due yet
	if !w.Refresh(7, 2) {
		t.Fatalf("expected refresh to find live task")
	}
	// original would have fired on tick 2; refreshed copy now also sits in
	// bucket (1+2)%60 = 3. Advance to the original's stale slot first.
	w.Advance() // tick 2: stale bucket clears, task already has a live copy ahead
	if count != 0 {
		t.Fatalf("refreshed task fired too early, count=%d", count)
	}
	w.Advance() // tick 3: refreshed copy fires
	if count != 1 {
		t.Fatalf("expected exactly one fire, got %d", count)
	}
}

func TestHasReflectsLiveness(t *testing.T) {
	w := New()
	w.Add(5, 1, func() {}, nil)
	if !w.Has(5) {
		t.Fatalf("expected task to be live before firing")
	}
	w.Advance()
	if w.Has(5) {
		t.Fatalf("expected task to be gone after firing")
	}
}

func TestDelayClamping(t *testing.T) {
	w := New()
	fired := false
	w.Add(1, 0, func() { fired = true }, nil) // clamps to 1
	w.Advance()
	if !fired {
		t.Fatalf("expected delay<1 to clamp to 1")
	}

	w2 := New()
	fired2 := false
	w2.Add(1, Width+10, func() { fired2 = true }, nil) // clamps to Width
	for i := 0; i < Width-1; i++ {
		w2.Advance()
	}
	if fired2 {
		t.Fatalf("fired before clamp boundary")
	}
	w2.Advance()
	if !fired2 {
		t.Fatalf("expected fire at clamped delay=Width")
	}
}
