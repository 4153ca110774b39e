// Package signaling contains the WebSocket surface of the relay: connection
// handles, the per-kind message router, presence broadcasting and opaque
// call-signaling fan-out.
//
// The server never interprets offer/answer/ICE payloads; inbound frames are
// forwarded byte-for-byte to their recipients.
package signaling
