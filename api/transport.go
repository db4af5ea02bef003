// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Byte-stream strategy the host's I/O layer reads from and writes to.
// Socket connections and shared-memory connections each supply one.

package api

// Stream is a non-blocking, full-duplex byte stream.
//
// Read returns ErrWouldBlock when nothing is ready and io.EOF when the
// peer has gone. Write may be short; the caller keeps the remainder.
type Stream interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
}
