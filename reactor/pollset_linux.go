//go:build linux
// +build linux

// File: reactor/pollset_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) implementation of PollSet.

package reactor

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/pollable/api"
)

var eventFlagMap = [...]struct {
	bit  uint32
	kind api.EventMask
}{
	{unix.EPOLLIN, api.Read},
	{unix.EPOLLOUT, api.Write},
	{unix.EPOLLRDHUP, api.ReadHangup},
	{unix.EPOLLHUP, api.Hangup},
	{unix.EPOLLPRI, api.Priority},
	{unix.EPOLLERR, api.Error},
}

func toEpollEvents(mask api.EventMask) uint32 {
	var flags uint32
	for _, m := range eventFlagMap {
		if mask.Has(m.kind) {
			flags |= m.bit
		}
	}
	return flags
}

// fromEpollEvents maps kernel event flags back to an EventMask. Unknown
// kernel bits are silently dropped, per spec.
func fromEpollEvents(flags uint32) api.EventMask {
	var mask api.EventMask
	for _, m := range eventFlagMap {
		if flags&m.bit != 0 {
			mask |= m.kind
		}
	}
	return mask
}

func triggerFlags(t Trigger) uint32 {
	if t == Edge {
		return unix.EPOLLET
	}
	return 0
}

func repeatFlags(r Repeat) uint32 {
	if r == OneShot {
		return unix.EPOLLONESHOT
	}
	return 0
}

// PollSet owns exactly one epoll instance. It is movable, not copyable:
// copy the pointer via Move, never dereference and assign the struct.
type PollSet struct {
	onExec     api.OnExecMode
	epfd       int
	numTargets uint32
	lastEvents []Event
}

func createEpollFD(onExec api.OnExecMode) (int, error) {
	flags := 0
	if onExec == api.Close {
		flags = unix.EPOLL_CLOEXEC
	}
	fd, err := unix.EpollCreate1(flags)
	if err != nil {
		return -1, api.NewSystemError("epoll_create1", err)
	}
	return fd, nil
}

// New constructs an empty PollSet.
func New(onExec api.OnExecMode) (*PollSet, error) {
	epfd, err := createEpollFD(onExec)
	if err != nil {
		return nil, err
	}
	return &PollSet{onExec: onExec, epfd: epfd}, nil
}

// NewWithFD constructs a PollSet pre-seeded with one registration.
func NewWithFD(fd int, mask api.EventMask, trigger Trigger, repeat Repeat, onExec api.OnExecMode) (*PollSet, error) {
	p, err := New(onExec)
	if err != nil {
		return nil, err
	}
	if err := p.addEvent(fd, mask, trigger, repeat); err != nil {
		_ = unix.Close(p.epfd)
		return nil, err
	}
	p.numTargets = 1
	return p, nil
}

// FD exposes the underlying epoll instance's file descriptor.
func (p *PollSet) FD() int { return p.epfd }

// NumTargets returns the number of successful Add-minus-Remove operations
// since the last Clear.
func (p *PollSet) NumTargets() uint32 { return p.numTargets }

// Events returns the (fd, events) pairs from the most recent Wait call, in
// kernel delivery order.
func (p *PollSet) Events() []Event { return p.lastEvents }

func (p *PollSet) addEvent(fd int, mask api.EventMask, trigger Trigger, repeat Repeat) error {
	ev := unix.EpollEvent{
		Events: toEpollEvents(mask) | triggerFlags(trigger) | repeatFlags(repeat),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		if err == unix.EEXIST {
			return api.NewAlreadyRegistered(fd)
		}
		return api.NewSystemError("epoll_ctl(ADD)", err)
	}
	return nil
}

// Add registers fd for the given readiness mask. Fails with
// api.ErrAlreadyRegistered if fd is already present.
func (p *PollSet) Add(fd int, mask api.EventMask, trigger Trigger, repeat Repeat) error {
	if err := p.addEvent(fd, mask, trigger, repeat); err != nil {
		return err
	}
	p.numTargets++
	return nil
}

// Modify changes the mask/trigger/repeat of an already-registered fd.
// Fails with api.ErrNotRegistered if fd is absent.
func (p *PollSet) Modify(fd int, mask api.EventMask, trigger Trigger, repeat Repeat) error {
	ev := unix.EpollEvent{
		Events: toEpollEvents(mask) | triggerFlags(trigger) | repeatFlags(repeat),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		if err == unix.ENOENT {
			return api.NewNotRegistered(fd)
		}
		return api.NewSystemError("epoll_ctl(MOD)", err)
	}
	return nil
}

// Remove unregisters fd. Fails with api.ErrNotRegistered if fd is an open
// descriptor absent from the set (ENOENT); any other epoll_ctl failure,
// such as EBADF for a descriptor that is not open, is an api.SystemError.
func (p *PollSet) Remove(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		if err == unix.ENOENT {
			return api.NewNotRegistered(fd)
		}
		return api.NewSystemError("epoll_ctl(DEL)", err)
	}
	p.numTargets--
	return nil
}

// Clear atomically discards all registrations by replacing the epoll
// instance.
func (p *PollSet) Clear() error {
	newFD, err := createEpollFD(p.onExec)
	if err != nil {
		return err
	}
	_ = unix.Close(p.epfd)
	p.epfd = newFD
	p.numTargets = 0
	p.lastEvents = nil
	return nil
}

// Wait blocks up to timeoutMs (negative means indefinite) for at least one
// event. maxEvents == 0 means "use the current number of registered
// targets". EINTR is retried transparently and never surfaced. Returns
// whether at least one event was delivered, and populates Events().
func (p *PollSet) Wait(timeoutMs int64, maxEvents uint32) (bool, error) {
	numToPoll := maxEvents
	if numToPoll == 0 {
		numToPoll = p.numTargets
	}
	if numToPoll == 0 {
		// epoll_wait requires a non-empty buffer; a set with no targets
		// simply waits out the timeout and reports nothing.
		numToPoll = 1
	}

	timeout := int(timeoutMs)
	if timeoutMs < 0 {
		timeout = -1
	}

	raw := make([]unix.EpollEvent, numToPoll)
	var n int
	for {
		var err error
		n, err = unix.EpollWait(p.epfd, raw, timeout)
		if err == nil {
			break
		}
		if err == unix.EINTR {
			continue
		}
		return false, api.NewSystemError("epoll_wait", err)
	}

	p.lastEvents = p.lastEvents[:0]
	for i := 0; i < n; i++ {
		p.lastEvents = append(p.lastEvents, Event{
			FD:     int(raw[i].Fd),
			Events: fromEpollEvents(raw[i].Events),
		})
	}
	return n > 0, nil
}

// WhenReady waits indefinitely, then invokes onReady with the event list.
// A panic inside onReady is recovered so it cannot leave the caller's
// PollSet in a half-drained state.
func (p *PollSet) WhenReady(onReady func([]Event), maxEvents uint32) error {
	if _, err := p.Wait(-1, maxEvents); err != nil {
		return err
	}
	p.dispatch(onReady)
	return nil
}

// WhenReadyTimeout waits up to timeoutMs, invoking onReady on success or
// onTimeout if the deadline passes with no events delivered.
func (p *PollSet) WhenReadyTimeout(timeoutMs int64, onReady func([]Event), onTimeout func(), maxEvents uint32) error {
	ready, err := p.Wait(timeoutMs, maxEvents)
	if err != nil {
		return err
	}
	if ready {
		p.dispatch(onReady)
	} else {
		onTimeout()
	}
	return nil
}

func (p *PollSet) dispatch(onReady func([]Event)) {
	defer func() { _ = recover() }()
	onReady(p.lastEvents)
}

// Move transfers ownership of the epoll instance to a new PollSet, leaving
// the receiver in a fresh empty state (as if newly constructed with an
// already-closed handle). Moving a PollSet is not itself thread-safe.
func (p *PollSet) Move() *PollSet {
	moved := &PollSet{
		onExec:     p.onExec,
		epfd:       p.epfd,
		numTargets: p.numTargets,
		lastEvents: p.lastEvents,
	}
	p.epfd = -1
	p.numTargets = 0
	p.lastEvents = nil
	return moved
}

// Close releases the epoll file descriptor, if still owned.
func (p *PollSet) Close() error {
	if p.epfd < 0 {
		return nil
	}
	fd := p.epfd
	p.epfd = -1
	if err := unix.Close(fd); err != nil {
		return api.NewSystemError("close", err)
	}
	return nil
}
