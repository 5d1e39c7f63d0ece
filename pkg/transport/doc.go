// Package transport owns one bidirectional message connection at a time.
//
// A Transport is created by a Dialer for a fixed Endpoint and reports its
// lifecycle through the four callbacks of a Handler:
//
//	OnOpen     the connection is established; always before any OnMessage
//	OnMessage  one received text frame, in receipt order
//	OnError    a failure; always followed by OnClose
//	OnClose    the single terminal event, fired exactly once
//
// Open returns immediately. Send fails with ErrNotOpen unless the
// transport is open. Close is idempotent and may be called at any point,
// including before Open or while the connection is still being dialed.
//
// A closed transport is never reopened: callers that want to reconnect
// dial a new one.
//
// WebSocketDialer is the production implementation (gorilla/websocket).
// FakeDialer is an in-memory double for tests that drives the callbacks
// synchronously.
package transport
