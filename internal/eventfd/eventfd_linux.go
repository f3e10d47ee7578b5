//go:build linux
// +build linux

// File: internal/eventfd/eventfd_linux.go
// Author: momentics <momentics@gmail.com>

package eventfd

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/momentics/pollable/api"
)

// New creates an eventfd with the given initial counter value. When
// semaphore is true, the fd is opened in EFD_SEMAPHORE mode (each read
// decrements the counter by exactly one, blocking at zero); otherwise it is
// opened in counter mode (reads drain the counter to zero). The eventfd
// starts life in blocking mode: reads/writes that cannot proceed block in
// the kernel rather than returning EAGAIN, matching the semantics of the
// blocking Up/Down and SetState operations built on top of it.
func New(initial uint64, semaphore bool, onExec api.OnExecMode) (int, error) {
	flags := 0
	if onExec == api.Close {
		flags |= unix.EFD_CLOEXEC
	}
	if semaphore {
		flags |= unix.EFD_SEMAPHORE
	}
	fd, err := unix.Eventfd(uint(initial), flags)
	if err != nil {
		return -1, api.NewSystemError("eventfd2", err)
	}
	return fd, nil
}

// Read performs a blocking 8-byte read of the eventfd counter, retrying
// transparently on EINTR.
func Read(fd int) (uint64, error) {
	var buf [8]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, api.NewSystemError("read(eventfd)", err)
		}
		if n != 8 {
			return 0, api.NewSystemError("read(eventfd)", unix.EIO)
		}
		return binary.NativeEndian.Uint64(buf[:]), nil
	}
}

// Write performs a blocking 8-byte write of v to the eventfd counter,
// retrying transparently on EINTR.
func Write(fd int, v uint64) error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], v)
	for {
		n, err := unix.Write(fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return api.NewSystemError("write(eventfd)", err)
		}
		if n != 8 {
			return api.NewSystemError("write(eventfd)", unix.EIO)
		}
		return nil
	}
}

// Close closes the eventfd.
func Close(fd int) error {
	if err := unix.Close(fd); err != nil {
		return api.NewSystemError("close(eventfd)", err)
	}
	return nil
}
