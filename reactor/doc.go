// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor wraps the kernel's epoll(7) readiness-notification
// facility behind PollSet: a registration set that can add, modify, remove
// and bounded-wait on file descriptors, reporting (fd, event-mask) pairs in
// kernel delivery order.
package reactor
