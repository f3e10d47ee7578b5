// File: pollable/condition.go
// Author: momentics <momentics@gmail.com>
//
// Condition is a pollable condition variable. Unlike sync.Cond, a waiter
// does not need to already be blocked in a call to see a notification: it
// first obtains a ticket (a single-use Semaphore) under the condition's
// lock, then blocks on the ticket after releasing it. A notifier that
// fires before the waiter ever blocks still leaves the ticket signaled,
// so the waiter's eventual wait returns immediately instead of missing
// the wakeup.
//
// Condition additionally supports an "observer" protocol on file
// descriptors: Observe registers a ticket in the waiter queue and keeps a
// second reference to it in a map keyed by the ticket's fd, then returns
// that fd for the caller to register in a reactor.PollSet. A notification
// pops the ticket from the waiter queue and makes the fd readable; it
// stays readable, and the observer stays ineligible for further
// notifications, until Ack drains the fd and re-enqueues the ticket.
// StopObserving returns the fd to the condition. Observers may only poll
// the fd and call Ack/StopObserving on it; any other operation on the fd
// is undefined behavior.

package pollable

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/pollable/api"
)

// ticket carries one potential notification between a Condition and a
// waiter or observer. The waiter queue and the observer map may each hold
// a reference, and either may drop the ticket first depending on
// notify/ack order, so the eventfd closes only when the last holder lets
// go.
type ticket struct {
	sem  *Semaphore
	refs atomic.Int32
}

func newTicket(onExec api.OnExecMode, refs int32) (*ticket, error) {
	sem, err := NewSemaphore(0, onExec)
	if err != nil {
		return nil, err
	}
	t := &ticket{sem: sem}
	t.refs.Store(refs)
	return t, nil
}

func (t *ticket) retain() { t.refs.Add(1) }

func (t *ticket) release() {
	if t.refs.Add(-1) == 0 {
		_ = t.sem.Close()
	}
}

// Condition is not copyable; move it with Move. Moving or destroying a
// condition with live waiters or observers is undefined.
type Condition struct {
	mu        sync.Mutex
	onExec    api.OnExecMode
	queue     []*ticket       // tickets eligible for notification; back = most recent
	observers map[int]*ticket // fd -> observer ticket, registered until StopObserving
}

// NewCondition creates an empty condition variable. onExec controls the
// CLOEXEC behavior of every ticket eventfd it subsequently creates.
func NewCondition(onExec api.OnExecMode) *Condition {
	return &Condition{
		onExec:    onExec,
		observers: make(map[int]*ticket),
	}
}

// enqueueWaiter registers a fresh ticket at the back of the waiter queue.
// The queue holds one reference; the caller holds the other and must
// release it once done waiting.
func (c *Condition) enqueueWaiter() (*ticket, error) {
	t, err := newTicket(c.onExec, 2)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.queue = append(c.queue, t)
	c.mu.Unlock()
	return t, nil
}

// Wait blocks the caller until a Notify* delivers its ticket. Callers
// protecting a predicate with their own lock must release that lock
// before calling Wait and re-check the predicate after it returns; Wait
// only manages the condition's internal bookkeeping lock.
func (c *Condition) Wait() error {
	t, err := c.enqueueWaiter()
	if err != nil {
		return err
	}
	t.sem.Down()
	t.release()
	return nil
}

// WaitTimeout is Wait bounded by timeoutMs; it returns false if the
// timeout elapses with no notification. timeoutMs < 0 blocks
// indefinitely. On timeout the ticket stays in the waiter queue: a later
// notification uselessly signals it once, dropping the queue's reference
// and closing its fd.
func (c *Condition) WaitTimeout(timeoutMs int64) (bool, error) {
	t, err := c.enqueueWaiter()
	if err != nil {
		return false, err
	}
	signaled, err := t.sem.DownTimeout(timeoutMs)
	t.release()
	return signaled, err
}

// NotifyOne delivers a notification to the most recently enqueued ticket
// (LIFO), whether it belongs to a blocked waiter or an observer. No-op on
// an empty queue. The LIFO choice is deliberate and documented; it is not
// a fairness guarantee.
func (c *Condition) NotifyOne() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.queue); n > 0 {
		t := c.queue[n-1]
		c.queue = c.queue[:n-1]
		t.sem.Up(1)
		t.release()
	}
}

// NotifyAll delivers a notification to every ticket currently in the
// waiter queue. Waiters and observers arriving after the call are not
// woken.
func (c *Condition) NotifyAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.queue) - 1; i >= 0; i-- {
		t := c.queue[i]
		t.sem.Up(1)
		t.release()
	}
	c.queue = c.queue[:0]
}

// Observe registers an observer ticket and returns its pollable fd. The
// fd becomes readable when a notification is delivered and stays readable
// until Ack; between the notification and the Ack the observer is not
// eligible for further notifications.
func (c *Condition) Observe() (int, error) {
	t, err := newTicket(c.onExec, 2) // one ref for the queue, one for the map
	if err != nil {
		return -1, err
	}
	c.mu.Lock()
	c.queue = append(c.queue, t)
	c.observers[t.sem.FD()] = t
	c.mu.Unlock()
	return t.sem.FD(), nil
}

// Ack consumes the outstanding notification on the observer registered as
// fd, blocking until one arrives if none has yet, then re-enqueues the
// ticket at the back of the waiter queue. Afterwards the fd is
// non-readable until the next notification.
func (c *Condition) Ack(fd int) error {
	c.mu.Lock()
	t, ok := c.observers[fd]
	c.mu.Unlock()
	if !ok {
		return api.NewNotRegistered(fd)
	}

	t.sem.Down()

	c.mu.Lock()
	t.retain()
	c.queue = append(c.queue, t)
	c.mu.Unlock()
	return nil
}

// StopObserving returns fd to the condition. The observer must not touch
// the fd afterwards. If the ticket is still in the waiter queue its fd
// stays open until a future notification pops it; a ticket with an
// unacknowledged notification is closed immediately.
func (c *Condition) StopObserving(fd int) error {
	c.mu.Lock()
	t, ok := c.observers[fd]
	if ok {
		delete(c.observers, fd)
	}
	c.mu.Unlock()
	if !ok {
		return api.NewNotRegistered(fd)
	}
	t.release()
	return nil
}

// Move transfers all waiters and observers to a new Condition, leaving
// the receiver empty. Moving a condition with live waiters or observers
// is undefined; Move exists so a freshly built condition can be
// relocated, not so an active one can be handed off.
func (c *Condition) Move() *Condition {
	c.mu.Lock()
	defer c.mu.Unlock()

	moved := &Condition{
		onExec:    c.onExec,
		queue:     c.queue,
		observers: c.observers,
	}
	c.queue = nil
	c.observers = make(map[int]*ticket)
	return moved
}

// ConditionGuard scopes an observation of a Condition: it calls Observe
// on construction and StopObserving when Stop is called, guaranteeing the
// fd is returned on every exit path of the observing code.
type ConditionGuard struct {
	c  *Condition
	fd int
}

// NewConditionGuard starts observing c.
func NewConditionGuard(c *Condition) (*ConditionGuard, error) {
	fd, err := c.Observe()
	if err != nil {
		return nil, err
	}
	return &ConditionGuard{c: c, fd: fd}, nil
}

// Active reports whether the guard is still observing its condition.
func (g *ConditionGuard) Active() bool { return g.c != nil }

// FD returns the guard's notification fd, or a negative value if the
// guard is no longer active.
func (g *ConditionGuard) FD() int {
	if g.c == nil {
		return -1
	}
	return g.fd
}

// Ack acknowledges the outstanding notification on the guard's fd.
func (g *ConditionGuard) Ack() error {
	if g.c == nil {
		return api.NewNotRegistered(g.fd)
	}
	return g.c.Ack(g.fd)
}

// Stop stops observing the guard's condition. Safe to call more than
// once; only the first call returns the fd.
func (g *ConditionGuard) Stop() error {
	if g.c == nil {
		return nil
	}
	err := g.c.StopObserving(g.fd)
	g.c = nil
	g.fd = -1
	return err
}
