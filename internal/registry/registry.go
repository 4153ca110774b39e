// Package registry holds the shared mutable state of the relay: which logical
// user owns which live connection, and which users participate in which room.
//
// All mutation goes through the methods on Users and Rooms; nothing outside
// this package touches the underlying maps. Registries hold non-owning
// references to connections — the transport layer owns the socket and its
// close handler is the single authority for removal.
package registry

import "errors"

// ErrConnClosed is returned by Conn.Send once the connection is closed or its
// send queue has been torn down.
var ErrConnClosed = errors.New("connection closed")

// Conn is the registry's view of one live duplex connection.
//
// Send must never block on a slow peer: implementations queue the frame and
// return, or fail with ErrConnClosed. Close is idempotent.
type Conn interface {
	// ID identifies the connection (not the user) for log correlation.
	ID() string
	Send(data []byte) error
	Close() error
}
