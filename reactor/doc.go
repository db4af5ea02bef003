// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness multiplexer a host main loop
// blocks on between turns. Linux uses epoll; other platforms get a stub.
package reactor
