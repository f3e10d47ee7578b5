// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package pollable bridges classical thread-synchronization objects onto
// kernel readiness notification: Semaphore and ReadWriteToggle wrap
// eventfd, Condition layers a thread/observer protocol on top of
// Semaphore, and Queue[T] is a bounded FIFO whose state transitions are
// published through six Conditions and one ReadWriteToggle.
//
// Every file descriptor these types hand out through FD()/Observe() is
// owned by its producing object. Callers may register such a descriptor in
// a reactor.PollSet; reading, writing, closing or dup'ing it is undefined
// behavior.
package pollable
