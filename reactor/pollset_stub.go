//go:build !linux
// +build !linux

// File: reactor/pollset_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for unsupported platforms. This module assumes a POSIX-like OS
// providing epoll-style readiness notification; portability beyond Linux
// is an explicit non-goal.

package reactor

import (
	"errors"

	"github.com/momentics/pollable/api"
)

var errUnsupportedPlatform = errors.New("reactor: this platform is not supported")

type PollSet struct{}

func New(onExec api.OnExecMode) (*PollSet, error) { return nil, errUnsupportedPlatform }

func NewWithFD(fd int, mask api.EventMask, trigger Trigger, repeat Repeat, onExec api.OnExecMode) (*PollSet, error) {
	return nil, errUnsupportedPlatform
}

func (p *PollSet) FD() int                  { return -1 }
func (p *PollSet) NumTargets() uint32       { return 0 }
func (p *PollSet) Events() []Event          { return nil }
func (p *PollSet) Add(int, api.EventMask, Trigger, Repeat) error    { return errUnsupportedPlatform }
func (p *PollSet) Modify(int, api.EventMask, Trigger, Repeat) error { return errUnsupportedPlatform }
func (p *PollSet) Remove(int) error                                 { return errUnsupportedPlatform }
func (p *PollSet) Clear() error                                     { return errUnsupportedPlatform }
func (p *PollSet) Wait(int64, uint32) (bool, error)                 { return false, errUnsupportedPlatform }
func (p *PollSet) WhenReady(func([]Event), uint32) error            { return errUnsupportedPlatform }
func (p *PollSet) WhenReadyTimeout(int64, func([]Event), func(), uint32) error {
	return errUnsupportedPlatform
}
func (p *PollSet) Move() *PollSet { return &PollSet{} }
func (p *PollSet) Close() error   { return nil }
