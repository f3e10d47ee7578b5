// File: pollable/semaphore.go
// Author: momentics <momentics@gmail.com>
//
// Semaphore is a counting semaphore backed by an eventfd in semaphore
// mode: its internal 64-bit counter is the semaphore value. A read
// decrements the counter by one, blocking while it is zero; a write adds
// the supplied value, blocking while the add would push the counter past
// 2^64-2.

package pollable

import (
	"github.com/momentics/pollable/api"
	"github.com/momentics/pollable/internal/eventfd"
	"github.com/momentics/pollable/reactor"
)

// Semaphore is not copyable; move it with Move. The zero value is not
// usable — construct with NewSemaphore.
type Semaphore struct {
	fd int
}

// NewSemaphore creates a semaphore with the given initial value.
func NewSemaphore(initial uint64, onExec api.OnExecMode) (*Semaphore, error) {
	fd, err := eventfd.New(initial, true, onExec)
	if err != nil {
		return nil, err
	}
	return &Semaphore{fd: fd}, nil
}

// FD exposes the underlying event-fd for external readiness polling.
// Callers polling this fd must not themselves read or write it.
func (s *Semaphore) FD() int { return s.fd }

// Up adds delta to the counter, blocking in the kernel until the add
// succeeds (i.e. until it would not overflow past 2^64-2). Any failure
// other than the blocking condition itself is a programming or
// environment error and panics, mirroring the unconditional-success
// contract spec'd for this operation.
func (s *Semaphore) Up(delta uint64) {
	if err := eventfd.Write(s.fd, delta); err != nil {
		panic(err)
	}
}

// UpTimeout adds delta, returning false if it could not be added before
// timeoutMs elapses. timeoutMs < 0 blocks indefinitely and always returns
// true.
func (s *Semaphore) UpTimeout(delta uint64, timeoutMs int64) (bool, error) {
	if timeoutMs < 0 {
		s.Up(delta)
		return true, nil
	}
	ps, err := reactor.NewWithFD(s.fd, api.Write, reactor.Level, reactor.Repeating, api.Close)
	if err != nil {
		return false, err
	}
	defer ps.Close()

	ready, err := ps.Wait(timeoutMs, 0)
	if err != nil {
		return false, err
	}
	if !ready {
		return false, nil
	}
	if err := eventfd.Write(s.fd, delta); err != nil {
		return false, err
	}
	return true, nil
}

// Down removes one from the counter, blocking in the kernel while it is
// zero.
func (s *Semaphore) Down() {
	if _, err := eventfd.Read(s.fd); err != nil {
		panic(err)
	}
}

// DownTimeout removes one, returning false if the counter never becomes
// positive before timeoutMs elapses. timeoutMs < 0 blocks indefinitely and
// always returns true.
func (s *Semaphore) DownTimeout(timeoutMs int64) (bool, error) {
	if timeoutMs < 0 {
		s.Down()
		return true, nil
	}
	ps, err := reactor.NewWithFD(s.fd, api.Read, reactor.Level, reactor.Repeating, api.Close)
	if err != nil {
		return false, err
	}
	defer ps.Close()

	ready, err := ps.Wait(timeoutMs, 0)
	if err != nil {
		return false, err
	}
	if !ready {
		return false, nil
	}
	if _, err := eventfd.Read(s.fd); err != nil {
		return false, err
	}
	return true, nil
}

// Move transfers ownership of the underlying event-fd to a new Semaphore,
// leaving the receiver closed and unusable.
func (s *Semaphore) Move() *Semaphore {
	moved := &Semaphore{fd: s.fd}
	s.fd = -1
	return moved
}

// Close releases the underlying event-fd, if still owned.
func (s *Semaphore) Close() error {
	if s.fd < 0 {
		return nil
	}
	fd := s.fd
	s.fd = -1
	return eventfd.Close(fd)
}
