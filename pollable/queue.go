// File: pollable/queue.go
// Author: momentics <momentics@gmail.com>
//
// Queue[T] is a bounded, thread-safe FIFO whose state transitions are
// published through six Conditions (Empty, NotEmpty, Full, NotFull,
// HighWaterMark, LowWaterMark) and one ReadWriteToggle suitable for
// PollSet registration. HighWaterMark and LowWaterMark form a hysteresis
// pair: HighWaterMark fires once when the size first climbs past the high
// mark, and will not fire again until the size has dropped to the low
// mark (firing LowWaterMark) and climbed back up.

package pollable

import (
	"sync"
	"time"

	"github.com/momentics/pollable/api"
)

// QueueEvent names one of the six transitions a Queue[T] publishes.
type QueueEvent int

const (
	// Empty fires when the queue goes from holding items to holding none.
	Empty QueueEvent = iota

	// NotEmpty fires when the queue goes from holding none to holding some.
	NotEmpty

	// Full fires when the queue reaches its maximum size.
	Full

	// NotFull fires when a full queue gives up an item.
	NotFull

	// HighWaterMark fires when the size climbs past the high water mark,
	// at most once per hysteresis cycle.
	HighWaterMark

	// LowWaterMark fires when the size falls to the low water mark after
	// an earlier high water crossing.
	LowWaterMark
)

func (e QueueEvent) String() string {
	switch e {
	case Empty:
		return "EMPTY"
	case NotEmpty:
		return "NOT_EMPTY"
	case Full:
		return "FULL"
	case NotFull:
		return "NOT_FULL"
	case HighWaterMark:
		return "HIGH_WATER_MARK"
	case LowWaterMark:
		return "LOW_WATER_MARK"
	default:
		return "UNKNOWN"
	}
}

// Queue is not copyable; move it with Move.
type Queue[T any] struct {
	mu     sync.Mutex
	onExec api.OnExecMode

	store   *backingStore[T]
	maxSize int

	lowWaterMark     int
	highWaterMark    int
	highWaterCrossed bool

	empty         *Condition
	notEmpty      *Condition
	full          *Condition
	notFull       *Condition
	highWaterCond *Condition
	lowWaterCond  *Condition

	toggle *ReadWriteToggle
}

// NewQueue creates a queue with capacity maxSize, a low water mark of 0
// and a high water mark equal to maxSize.
func NewQueue[T any](maxSize int, onExec api.OnExecMode) (*Queue[T], error) {
	return NewQueueWithMarks[T](maxSize, 0, maxSize, onExec)
}

// NewQueueWithMarks creates a queue with explicit low and high water
// marks. It requires 0 <= lowWaterMark <= highWaterMark <= maxSize and
// maxSize > 0.
func NewQueueWithMarks[T any](maxSize, lowWaterMark, highWaterMark int, onExec api.OnExecMode) (*Queue[T], error) {
	if maxSize <= 0 {
		return nil, api.NewBadValue("maxSize must be positive")
	}
	if lowWaterMark < 0 || lowWaterMark > highWaterMark || highWaterMark > maxSize {
		return nil, api.NewBadValue("water marks must satisfy 0 <= low <= high <= maxSize")
	}

	toggle, err := NewReadWriteToggle(onExec)
	if err != nil {
		return nil, err
	}

	q := &Queue[T]{
		onExec:        onExec,
		store:         newBackingStore[T](),
		maxSize:       maxSize,
		lowWaterMark:  lowWaterMark,
		highWaterMark: highWaterMark,
		empty:         NewCondition(onExec),
		notEmpty:      NewCondition(onExec),
		full:          NewCondition(onExec),
		notFull:       NewCondition(onExec),
		highWaterCond: NewCondition(onExec),
		lowWaterCond:  NewCondition(onExec),
		toggle:        toggle,
	}
	q.updateToggle(0)
	return q, nil
}

func (q *Queue[T]) conditionFor(event QueueEvent) *Condition {
	switch event {
	case Empty:
		return q.empty
	case NotEmpty:
		return q.notEmpty
	case Full:
		return q.full
	case NotFull:
		return q.notFull
	case HighWaterMark:
		return q.highWaterCond
	case LowWaterMark:
		return q.lowWaterCond
	default:
		return nil
	}
}

// Size returns the number of items currently queued.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Len()
}

// Empty reports whether the queue currently holds no items.
func (q *Queue[T]) Empty() bool { return q.Size() == 0 }

// MaxSize returns the queue's fixed capacity.
func (q *Queue[T]) MaxSize() int { return q.maxSize }

// LowWaterMark returns the current low water mark.
func (q *Queue[T]) LowWaterMark() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lowWaterMark
}

// HighWaterMark returns the current high water mark.
func (q *Queue[T]) HighWaterMark() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.highWaterMark
}

// AboveHighWaterMark reports whether the queue's size currently exceeds
// its high water mark.
func (q *Queue[T]) AboveHighWaterMark() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Len() > q.highWaterMark
}

// AtOrBelowLowWaterMark reports whether the queue's size is currently at
// or below its low water mark.
func (q *Queue[T]) AtOrBelowLowWaterMark() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.Len() <= q.lowWaterMark
}

// SetLowWaterMark changes the low water mark. It requires the new value
// to remain <= the current high water mark.
func (q *Queue[T]) SetLowWaterMark(v int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if v < 0 || v > q.highWaterMark {
		return api.NewBadValue("low water mark must satisfy 0 <= low <= high")
	}
	q.lowWaterMark = v
	return nil
}

// SetHighWaterMark changes the high water mark. It requires the new value
// to remain >= the current low water mark and <= maxSize.
func (q *Queue[T]) SetHighWaterMark(v int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if v < q.lowWaterMark || v > q.maxSize {
		return api.NewBadValue("high water mark must satisfy low <= high <= maxSize")
	}
	q.highWaterMark = v
	return nil
}

// updateToggle recomputes the pollable read/write state for the given
// size. Must be called with q.mu held.
func (q *Queue[T]) updateToggle(size int) {
	var state ToggleState
	switch {
	case size == 0:
		state = WriteOnly
	case size >= q.maxSize:
		state = ReadOnly
	default:
		state = ReadWrite
	}
	_ = q.toggle.SetState(state)
}

// issueNotifications fires every condition whose transition edge lies
// between prevSize and newSize, then refreshes the toggle. Must be called
// with q.mu held.
func (q *Queue[T]) issueNotifications(prevSize, newSize int) {
	if prevSize == 0 && newSize > 0 {
		q.notEmpty.NotifyAll()
	}
	if prevSize > 0 && newSize == 0 {
		q.empty.NotifyAll()
	}
	if prevSize >= q.maxSize && newSize < q.maxSize {
		q.notFull.NotifyAll()
	}
	if prevSize < q.maxSize && newSize >= q.maxSize {
		q.full.NotifyAll()
	}
	if prevSize <= q.highWaterMark && newSize > q.highWaterMark && !q.highWaterCrossed {
		q.highWaterCond.NotifyAll()
		q.highWaterCrossed = true
	}
	if prevSize > q.lowWaterMark && newSize <= q.lowWaterMark && q.highWaterCrossed {
		q.lowWaterCond.NotifyAll()
		q.highWaterCrossed = false
	}

	q.updateToggle(newSize)
}

// deadlineFor converts a millisecond timeout to an absolute deadline. A
// negative timeout means no deadline (the zero time).
func deadlineFor(timeoutMs int64) time.Time {
	if timeoutMs < 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
}

// waitForInvariant blocks until pred holds, obtaining a ticket on cond
// under q.mu, dropping q.mu to block on the ticket, then re-acquiring it
// to re-check pred. Because the ticket is enqueued before q.mu is
// released, a notification issued by a mutator (which must hold q.mu)
// cannot slip between the predicate check and the wait. A zero deadline
// waits indefinitely; otherwise every iteration waits only the time left
// until the shared deadline. Must be called with q.mu held; returns with
// q.mu held.
func (q *Queue[T]) waitForInvariant(cond *Condition, deadline time.Time, pred func() bool) (bool, error) {
	for !pred() {
		remaining := int64(-1)
		if !deadline.IsZero() {
			remaining = time.Until(deadline).Milliseconds()
			if remaining <= 0 {
				return false, nil
			}
		}
		t, err := cond.enqueueWaiter()
		if err != nil {
			return false, err
		}
		q.mu.Unlock()
		_, err = t.sem.DownTimeout(remaining)
		t.release()
		q.mu.Lock()
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// popFront dequeues the front item and issues transition notifications.
// Must be called with q.mu held and the queue non-empty.
func (q *Queue[T]) popFront() T {
	prevSize := q.store.Len()
	v := q.store.PopFront()
	q.issueNotifications(prevSize, q.store.Len())
	return v
}

// Get blocks until the queue is non-empty, then pops and returns the
// front item.
func (q *Queue[T]) Get() (T, error) {
	var zero T
	q.mu.Lock()
	defer q.mu.Unlock()

	ok, err := q.waitForInvariant(q.notEmpty, time.Time{}, func() bool { return q.store.Len() > 0 })
	if err != nil || !ok {
		return zero, err
	}
	return q.popFront(), nil
}

// GetTimeout is Get bounded by timeoutMs: 0 is a non-blocking try, a
// negative value blocks indefinitely, and anything else is an overall
// deadline shared across every internal retry. ok is false if the queue
// never became non-empty in time.
func (q *Queue[T]) GetTimeout(timeoutMs int64) (v T, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ok, err = q.waitForInvariant(q.notEmpty, deadlineFor(timeoutMs), func() bool { return q.store.Len() > 0 })
	if err != nil || !ok {
		return v, false, err
	}
	return q.popFront(), true, nil
}

// GetAll drains and returns every currently queued item, in FIFO order,
// without blocking.
func (q *Queue[T]) GetAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	prevSize := q.store.Len()
	out := q.store.DrainAll()
	q.issueNotifications(prevSize, 0)
	return out
}

func (q *Queue[T]) putDeadline(v T, deadline time.Time) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ok, err := q.waitForInvariant(q.notFull, deadline, func() bool { return q.store.Len() < q.maxSize })
	if err != nil || !ok {
		return false, err
	}
	prevSize := q.store.Len()
	q.store.PushBack(v)
	q.issueNotifications(prevSize, q.store.Len())
	return true, nil
}

// Put blocks until the queue has space, then appends v.
func (q *Queue[T]) Put(v T) error {
	_, err := q.putDeadline(v, time.Time{})
	return err
}

// PutTimeout is Put bounded by timeoutMs: 0 is a non-blocking try, a
// negative value blocks indefinitely. It returns false if the queue never
// had space in time.
func (q *Queue[T]) PutTimeout(v T, timeoutMs int64) (bool, error) {
	return q.putDeadline(v, deadlineFor(timeoutMs))
}

// Emplace is Put under another name, kept to mirror the
// construct-in-place entry point of the original interface; Go has no
// separate in-place construction to offer over passing v directly.
func (q *Queue[T]) Emplace(v T) error {
	return q.Put(v)
}

// TryEmplace is Emplace bounded by timeoutMs, with the same timeout
// semantics as PutTimeout.
func (q *Queue[T]) TryEmplace(v T, timeoutMs int64) (bool, error) {
	return q.PutTimeout(v, timeoutMs)
}

// Clear discards every queued item.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	prevSize := q.store.Len()
	q.store.Clear()
	q.issueNotifications(prevSize, 0)
}

// Wait blocks until the transition named by event has occurred.
func (q *Queue[T]) Wait(event QueueEvent) error {
	_, err := q.WaitTimeout(event, -1)
	return err
}

// WaitTimeout is Wait bounded by a single overall deadline shared across
// every internal retry — and, for the water-mark events, across both of
// their phases: a HighWaterMark wait first requires the hysteresis latch
// to be clear (a LowWaterMark crossing re-arms it), then the size to
// climb past the high mark, each phase drawing on the same deadline's
// remaining time. LowWaterMark is the mirror image: first the latch must
// be set by a high water crossing, then the size must fall to the low
// mark.
func (q *Queue[T]) WaitTimeout(event QueueEvent, timeoutMs int64) (bool, error) {
	deadline := deadlineFor(timeoutMs)

	q.mu.Lock()
	defer q.mu.Unlock()

	switch event {
	case Empty:
		return q.waitForInvariant(q.empty, deadline, func() bool { return q.store.Len() == 0 })
	case NotEmpty:
		return q.waitForInvariant(q.notEmpty, deadline, func() bool { return q.store.Len() > 0 })
	case Full:
		return q.waitForInvariant(q.full, deadline, func() bool { return q.store.Len() >= q.maxSize })
	case NotFull:
		return q.waitForInvariant(q.notFull, deadline, func() bool { return q.store.Len() < q.maxSize })
	case HighWaterMark:
		ok, err := q.waitForInvariant(q.lowWaterCond, deadline, func() bool { return !q.highWaterCrossed })
		if err != nil || !ok {
			return false, err
		}
		return q.waitForInvariant(q.highWaterCond, deadline, func() bool { return q.store.Len() > q.highWaterMark })
	case LowWaterMark:
		ok, err := q.waitForInvariant(q.highWaterCond, deadline, func() bool { return q.highWaterCrossed })
		if err != nil || !ok {
			return false, err
		}
		return q.waitForInvariant(q.lowWaterCond, deadline, func() bool { return q.store.Len() <= q.lowWaterMark })
	default:
		return false, api.NewBadValue("unknown queue event")
	}
}

// Observe registers an observer on event's condition and returns its fd.
func (q *Queue[T]) Observe(event QueueEvent) (int, error) {
	cond := q.conditionFor(event)
	if cond == nil {
		return -1, api.NewBadValue("unknown queue event")
	}
	return cond.Observe()
}

// Ack consumes the outstanding notification on the observer registered
// as fd for event.
func (q *Queue[T]) Ack(fd int, event QueueEvent) error {
	cond := q.conditionFor(event)
	if cond == nil {
		return api.NewBadValue("unknown queue event")
	}
	return cond.Ack(fd)
}

// StopObserving returns fd to event's condition.
func (q *Queue[T]) StopObserving(fd int, event QueueEvent) error {
	cond := q.conditionFor(event)
	if cond == nil {
		return api.NewBadValue("unknown queue event")
	}
	return cond.StopObserving(fd)
}

// QueueStateFD exposes the queue's combined state toggle fd: readable
// while the queue holds items, writable while it has space. Unlike the
// six event conditions this fd describes the steady state, not edges, and
// must only be monitored level-triggered.
func (q *Queue[T]) QueueStateFD() int {
	return q.toggle.FD()
}

// Move transfers the queued items, water marks, hysteresis latch, and all
// six conditions to a new Queue whose own fresh toggle reflects the
// moved-in size; the receiver keeps its toggle (reset to WriteOnly) and
// becomes a fresh, empty, usable queue. Moving with live waiters or
// observers is undefined.
func (q *Queue[T]) Move() (*Queue[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	toggle, err := NewReadWriteToggle(q.onExec)
	if err != nil {
		return nil, err
	}

	moved := &Queue[T]{
		onExec:           q.onExec,
		store:            q.store,
		maxSize:          q.maxSize,
		lowWaterMark:     q.lowWaterMark,
		highWaterMark:    q.highWaterMark,
		highWaterCrossed: q.highWaterCrossed,
		empty:            q.empty,
		notEmpty:         q.notEmpty,
		full:             q.full,
		notFull:          q.notFull,
		highWaterCond:    q.highWaterCond,
		lowWaterCond:     q.lowWaterCond,
		toggle:           toggle,
	}
	moved.updateToggle(moved.store.Len())

	q.store = newBackingStore[T]()
	q.highWaterCrossed = false
	q.empty = NewCondition(q.onExec)
	q.notEmpty = NewCondition(q.onExec)
	q.full = NewCondition(q.onExec)
	q.notFull = NewCondition(q.onExec)
	q.highWaterCond = NewCondition(q.onExec)
	q.lowWaterCond = NewCondition(q.onExec)
	q.updateToggle(0)

	return moved, nil
}

// QueueGuard scopes an observation of a single queue event: it calls
// Observe on construction and StopObserving when Stop is called,
// guaranteeing the fd is returned on every exit path.
type QueueGuard[T any] struct {
	q     *Queue[T]
	event QueueEvent
	fd    int
}

// NewQueueGuard starts observing event on q.
func NewQueueGuard[T any](q *Queue[T], event QueueEvent) (*QueueGuard[T], error) {
	fd, err := q.Observe(event)
	if err != nil {
		return nil, err
	}
	return &QueueGuard[T]{q: q, event: event, fd: fd}, nil
}

// Active reports whether the guard is still observing its queue.
func (g *QueueGuard[T]) Active() bool { return g.q != nil }

// FD returns the guard's notification fd, or a negative value if the
// guard is no longer active.
func (g *QueueGuard[T]) FD() int {
	if g.q == nil {
		return -1
	}
	return g.fd
}

// Ack acknowledges the outstanding notification on the guard's fd.
func (g *QueueGuard[T]) Ack() error {
	if g.q == nil {
		return api.NewNotRegistered(g.fd)
	}
	return g.q.Ack(g.fd, g.event)
}

// Stop stops observing the guard's event. Safe to call more than once;
// only the first call returns the fd.
func (g *QueueGuard[T]) Stop() error {
	if g.q == nil {
		return nil
	}
	err := g.q.StopObserving(g.fd, g.event)
	g.q = nil
	g.fd = -1
	return err
}
