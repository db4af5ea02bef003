// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives shared by the shared-memory transport and its
// clients. ByteRing is a single-producer single-consumer ring that works
// across processes. Baton is the turn token the host main loop and the
// polling goroutine pass back and forth, spinning with Backoff.
package concurrency
