//go:build !linux
// +build !linux

// File: internal/eventfd/eventfd_stub.go
// Author: momentics <momentics@gmail.com>

package eventfd

import (
	"errors"

	"github.com/momentics/pollable/api"
)

var errUnsupportedPlatform = errors.New("eventfd: this platform is not supported")

func New(initial uint64, semaphore bool, onExec api.OnExecMode) (int, error) {
	return -1, errUnsupportedPlatform
}

func Read(fd int) (uint64, error) { return 0, errUnsupportedPlatform }

func Write(fd int, v uint64) error { return errUnsupportedPlatform }

func Close(fd int) error { return nil }
