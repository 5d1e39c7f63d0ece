// Package feed keeps a record collection in sync with server-pushed status
// deltas over a reconnecting transport.
//
// A Client owns one transport at a time. It never sends anything; every
// inbound frame that decodes as a status_update is handed to the merge
// function on the client's event loop. Frames that do not decode are
// dropped without surfacing an error.
//
// When the transport closes or fails the client schedules a reconnect
// after Backoff.Delay(attempt) and increments attempt. A successful open
// resets attempt to zero. There is no retry limit. Every reconnect dials a
// brand-new transport, and events still arriving from a superseded one are
// ignored.
//
// Close stops the client for good: a pending reconnect is cancelled, the
// live transport is closed and every later event is a no-op.
//
//	store := status.NewStore(initial)
//	c, err := feed.New(dialer, transport.Endpoint{URL: url}, store.Apply)
//	if err != nil {
//	    return err
//	}
//	c.Start()
//	defer c.Close()
package feed
