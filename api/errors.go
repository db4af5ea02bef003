// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-shm.

package api

import "fmt"

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeWrongArity
	ErrCodeBadVersion
	ErrCodeVersionTooHigh
	ErrCodeNameTooLong
	ErrCodeSegmentNotFound
	ErrCodeMapFailed
	ErrCodeSpawnFailed
	ErrCodeClosed
	ErrCodeNoLiveness
	ErrCodeInternal
)

// Open handshake errors. Their messages are what the host replies with.
var (
	ErrWrongArity      = NewError(ErrCodeWrongArity, "wrong number of arguments for 'shm.open' command")
	ErrBadVersion      = NewError(ErrCodeBadVersion, "Could not parse version")
	ErrVersionTooHigh  = NewError(ErrCodeVersionTooHigh, "Client shm connector version is too high, not supported.")
	ErrNameTooLong     = NewError(ErrCodeNameTooLong, "Shared memory file length too long")
	ErrSegmentNotFound = NewError(ErrCodeSegmentNotFound, "Can't find the shared memory file on this host")
	ErrMapFailed       = NewError(ErrCodeMapFailed, "Found the shared memory file but unable to mmap it")
	ErrSpawnFailed     = NewError(ErrCodeSpawnFailed, "Can't create a thread to listen to the changes in shared memory.")
	ErrClosed          = NewError(ErrCodeClosed, "shared memory transport is shut down")
	ErrNoLiveness      = NewError(ErrCodeNoLiveness, "connection has no socket to watch for liveness")
)

// Transport flow-control signals. Neither one is a failure.
var (
	// ErrWouldBlock mirrors EAGAIN on a non-blocking socket: no data ready.
	ErrWouldBlock = fmt.Errorf("operation would block")
	// ErrNotServiced is returned by a shared-memory stream used outside
	// the window in which its connection is being serviced.
	ErrNotServiced = fmt.Errorf("connection is not currently serviced")
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Is matches errors by code, so a copy carrying context still
// satisfies errors.Is against the package sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// With returns a copy of e carrying an extra context entry.
// Sentinels are never mutated.
func (e *Error) With(key string, value any) *Error {
	ctx := make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	return &Error{Code: e.Code, Message: e.Message, Context: ctx}
}
