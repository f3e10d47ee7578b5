// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package api holds the platform-neutral types shared by reactor and
// pollable: the readiness event mask, the exec-propagation mode for
// kernel handles, and the error taxonomy the rest of the module returns.
package api
