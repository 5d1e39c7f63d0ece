// Package eventloop provides the cooperative, single-goroutine executor
// that the feed client and console session run on.
//
// Every transport event, timer callback and public method of those
// components is funnelled through an Executor, so their state is only ever
// touched by one goroutine at a time and needs no locks. Handlers run to
// completion before the next one starts.
//
// Loop is the production executor: a goroutine draining a queue of
// functions. Inline runs functions on the calling goroutine and is meant
// for tests that drive a component step by step.
//
//	loop := eventloop.New(eventloop.WithLogger(logger))
//	defer loop.Stop()
//
//	client, _ := feed.New(dialer, endpoint, store.Apply, feed.WithExecutor(loop))
package eventloop
