// Package timerwheel implements a hashed timer wheel used for idle-
// connection eviction, driven by a 1-second timer descriptor on the
// reactor thread. All operations are confined to a single goroutine (the
// owning EventLoop); callers on other goroutines must route through that
// loop's RunInLoop.
package timerwheel

// Width is the fixed ring size: delay 1..Width seconds ahead of the
// current tick.
const Width = 60

// Task is a single scheduled action. The source this is adapted from ties
// a Task's lifetime to a shared_ptr/weak_ptr pair: each bucket slot that
// references a Task holds a strong reference, the Wheel's index holds a
// weak one, and the user callback fires exactly once, at the moment the
// last strong reference is dropped (the last bucket holding it is
// cleared) — not at the first. Refresh adds a second strong reference in
// a later bucket without touching the first; the Task only fires once its
// reference count reaches zero. This type reproduces that with an
// explicit count instead of an actual weak pointer, per the arena idiom
// noted for Go: "present in any bucket" = strong, "present in the index
// table" = weak.
type Task struct {
	ID        uint64
	action    func()
	release   func()
	cancelled bool
	refs      int
	fired     bool
}

// Cancel suppresses the user callback. Safe to call multiple times; the
// first call wins. Cancel does not remove the Task from its bucket(s) —
// it still fires (its release callback, never its action) once its last
// reference is dropped.
func (t *Task) Cancel() {
	t.cancelled = true
}

// dropRef removes one strong reference; once the count reaches zero the
// Task fires.
func (t *Task) dropRef() {
	t.refs--
	if t.refs > 0 || t.fired {
		return
	}
	t.fired = true
	if !t.cancelled && t.action != nil {
		t.action()
	}
	if t.release != nil {
		t.release()
	}
}

// Wheel is a fixed-capacity hashed timer wheel: a ring of Width buckets,
// each holding zero or more strong Task references, plus an index mapping
// id -> Task (a weak reference, in the sense that it does not keep the
// Task alive by itself; only bucket membership counts as a strong ref).
type Wheel struct {
	tick    int
	buckets [Width][]*Task
	index   map[uint64]*Task
}

// New creates an empty Wheel.
func New() *Wheel {
	return &Wheel{index: make(map[uint64]*Task)}
}

// Add schedules a new Task with the given id, due in delay seconds
// (clamped to 1..Width), invoking action at expiry (unless cancelled) and
// release unconditionally. A pre-existing live Task for id is replaced in
// the index; its old bucket reference still counts toward its own
// refcount and will fire independently when cleared.
func (w *Wheel) Add(id uint64, delay int, action, release func()) *Task {
	delay = clampDelay(delay)
	t := &Task{ID: id, action: action, release: release, refs: 1}
	slot := (w.tick + delay) % Width
	w.buckets[slot] = append(w.buckets[slot], t)
	w.index[id] = t
	return t
}

// Refresh re-arms the Task for id: it adds a second strong reference at
// the new expiry slot without removing the existing one(s). The Task's
// action/release still fire exactly once, only once every strong
// reference (old and new) has been cleared. Returns false if id has no
// live Task.
func (w *Wheel) Refresh(id uint64, delay int) bool {
	t, ok := w.index[id]
	if !ok || t.fired {
		return false
	}
	delay = clampDelay(delay)
	slot := (w.tick + delay) % Width
	t.refs++
	w.buckets[slot] = append(w.buckets[slot], t)
	return true
}

// Cancel suppresses the user callback for id's Task, if it exists and has
// not already fired. The release callback still fires when the Task's
// last reference is dropped.
func (w *Wheel) Cancel(id uint64) bool {
	t, ok := w.index[id]
	if !ok {
		return false
	}
	t.Cancel()
	return true
}

// Has reports whether id currently has a live (not yet fired) Task.
func (w *Wheel) Has(id uint64) bool {
	t, ok := w.index[id]
	return ok && !t.fired
}

// Advance steps the wheel forward by one tick and drops one strong
// reference for every Task in the newly current bucket, firing any whose
// reference count reaches zero. It is called once per overflow count read
// from the timer descriptor.
func (w *Wheel) Advance() {
	w.tick = (w.tick + 1) % Width
	bucket := w.buckets[w.tick]
	w.buckets[w.tick] = nil
	for _, t := range bucket {
		t.dropRef()
		if t.fired && w.index[t.ID] == t {
			delete(w.index, t.ID)
		}
	}
}

func clampDelay(delay int) int {
	if delay < 1 {
		return 1
	}
	if delay > Width {
		return Width
	}
	return delay
}
