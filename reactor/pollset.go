// File: reactor/pollset.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral declarations for PollSet: the trigger/repeat modes and
// the event type it reports. The epoll-backed implementation lives in
// pollset_linux.go; pollset_stub.go covers every other platform.

package reactor

import "github.com/momentics/pollable/api"

// Trigger selects level- or edge-triggered delivery for a registered fd.
type Trigger int

const (
	Level Trigger = iota
	Edge
)

// Repeat selects whether a registration disarms itself after one delivery.
type Repeat int

const (
	Repeating Repeat = iota
	OneShot
)

// Event is a single (fd, event-mask) pair reported by a PollSet.Wait call.
type Event struct {
	FD     int
	Events api.EventMask
}
