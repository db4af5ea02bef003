// Package api
// Author: momentics@gmail.com
//
// Lock-free byte ring for cross-process producer/consumer.

package api

// ByteRing is a fixed-capacity circular byte queue with exactly one
// writer and one reader. Neither side ever waits for the other.
type ByteRing interface {
	// Cap returns the fixed capacity in bytes.
	Cap() int
	// Used returns bytes available to the reader.
	Used() int
	// Free returns bytes available to the writer.
	Free() int
	// Write copies min(len(p), Free()) bytes and returns that count.
	Write(p []byte) int
	// Read copies min(len(p), Used()) bytes and returns that count.
	Read(p []byte) int
}
