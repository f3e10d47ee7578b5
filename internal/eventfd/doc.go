// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package eventfd wraps the kernel's eventfd2(2) facility: a file
// descriptor carrying a single 64-bit counter, manipulated by 8-byte
// read/write. pollable.Semaphore uses it in semaphore mode (each read
// decrements by one); pollable.ReadWriteToggle uses it in counter mode
// (reads drain the counter to zero).
package eventfd
