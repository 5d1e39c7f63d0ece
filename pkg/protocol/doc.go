// Package protocol defines the JSON messages exchanged on the feed and
// console channels.
//
// # Feed
//
// The feed is server push only. Each frame is one status update:
//
//	{"type": "status_update", "server_id": 7, "status": {...}}
//
// DecodeFeedMessage validates the envelope. Frames with another type, a
// missing server_id, or a missing or non-object status are rejected with
// ErrUnknownType or ErrMalformed and should be dropped by the caller.
//
// # Console
//
// The console starts with a client handshake naming the target server:
//
//	client → {"server_id": 7}
//	server → {"status": "connected", "server": "Alpha"}
//
// after which commands and replies flow freely:
//
//	client → {"command": "status"}
//	server → {"output": "hostname: Alpha"}
//	server → {"error": "unknown command"}
//
// A reply that is not a JSON object of this shape is raw console output.
package protocol
