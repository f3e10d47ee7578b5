// File: pollable/readwritetoggle.go
// Author: momentics <momentics@gmail.com>
//
// ReadWriteToggle gives one thread explicit control over whether a file
// descriptor looks readable, writable, or both to another thread blocked
// in a PollSet wait. It is backed by a single eventfd in counter mode
// (never semaphore mode): the three states are encoded as three reserved
// counter values.
//
// Applications may only monitor the toggle's fd with a PollSet; reading or
// writing it directly is undefined behavior and will desynchronize the
// toggle's internal state from the fd's actual counter.
//
// Because of eventfd's semantics, a transition from ReadOnly directly to
// ReadWrite must drain the counter to zero and then write it back up,
// which spuriously toggles the fd unreadable and then readable again. An
// edge-triggered observer of this toggle may see a redundant readable
// edge; only level-triggered monitoring is a supported contract for this
// type.

package pollable

import (
	"github.com/momentics/pollable/api"
	"github.com/momentics/pollable/internal/eventfd"
)

// ToggleState is one of the three states a ReadWriteToggle can take.
type ToggleState int

const (
	ReadOnly ToggleState = iota
	WriteOnly
	ReadWrite
)

func (s ToggleState) String() string {
	switch s {
	case ReadOnly:
		return "READ_ONLY"
	case WriteOnly:
		return "WRITE_ONLY"
	default:
		return "READ_WRITE"
	}
}

// stateValues are the reserved eventfd counter values for each state. The
// readiness of an eventfd mirrors its counter: readable while counter > 0,
// writable while an add of 1 would not push the counter past 2^64-2. So
// ReadOnly saturates the counter, WriteOnly zeroes it, and ReadWrite parks
// it at 1.
var stateValues = [3]uint64{
	ReadOnly:  ^uint64(0) - 1, // 2^64 - 2
	WriteOnly: 0,
	ReadWrite: 1,
}

// ReadWriteToggle is not copyable; move it with Move.
type ReadWriteToggle struct {
	fd    int
	state ToggleState
}

// NewReadWriteToggle creates a toggle starting in the ReadWrite state.
func NewReadWriteToggle(onExec api.OnExecMode) (*ReadWriteToggle, error) {
	fd, err := eventfd.New(stateValues[ReadWrite], false, onExec)
	if err != nil {
		return nil, err
	}
	return &ReadWriteToggle{fd: fd, state: ReadWrite}, nil
}

// FD exposes the underlying event-fd for readiness polling.
func (t *ReadWriteToggle) FD() int { return t.fd }

// State returns the toggle's last-set state.
func (t *ReadWriteToggle) State() ToggleState { return t.state }

// SetState is a no-op if newState equals the current state. Otherwise it
// computes delta = V(new) - V(old) over the reserved counter values: a
// positive delta is written directly; a negative delta drains the counter
// (resetting it to zero) and then, if V(new) is non-zero, writes it back.
func (t *ReadWriteToggle) SetState(newState ToggleState) error {
	if newState == t.state {
		return nil
	}
	oldValue := stateValues[t.state]
	newValue := stateValues[newState]

	switch {
	case newValue > oldValue:
		if err := eventfd.Write(t.fd, newValue-oldValue); err != nil {
			return err
		}
	case newValue < oldValue:
		if _, err := eventfd.Read(t.fd); err != nil {
			return err
		}
		if newValue != 0 {
			if err := eventfd.Write(t.fd, newValue); err != nil {
				return err
			}
		}
	}
	t.state = newState
	return nil
}

// Move transfers ownership of the underlying event-fd to a new
// ReadWriteToggle, leaving the receiver closed and unusable.
func (t *ReadWriteToggle) Move() *ReadWriteToggle {
	moved := &ReadWriteToggle{fd: t.fd, state: t.state}
	t.fd = -1
	return moved
}

// Close releases the underlying event-fd, if still owned.
func (t *ReadWriteToggle) Close() error {
	if t.fd < 0 {
		return nil
	}
	fd := t.fd
	t.fd = -1
	return eventfd.Close(fd)
}
