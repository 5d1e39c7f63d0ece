// Package console implements an interactive remote console session over a
// single transport.
//
// Opening a Session dials the console endpoint with the credential as a
// connection parameter and, once the transport opens, sends a handshake
// naming the target server. The session is Connecting until the server
// acknowledges with {"status":"connected"}; only then does Submit send
// commands. Output, server errors and connection events are appended to
// an append-only transcript in the order the event loop processes them.
//
// A session never reconnects. After the transport closes it is Closed and
// ignores every later event; open a new Session to try again.
//
//	s, err := console.Open(dialer, endpoint, 7, console.WithTitle("Alpha"))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	s.Submit("status")
package console
