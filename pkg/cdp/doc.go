// Package cdp multiplexes Chrome DevTools Protocol traffic over a single
// WebSocket connection.
//
// The browser speaks JSON frames over one socket. Every command carries an id
// and is answered by a reply with the same id. Commands addressed to a tab are
// double-encoded: the tab command is serialised to a string and sent as the
// message field of Target.sendMessageToTarget, and the tab's answer comes back
// as a Target.receivedMessageFromTarget event whose message field is another
// JSON document with its own id.
//
// # Architecture
//
// A Multiplexer owns the connection. One goroutine (the dispatch loop) is the
// only writer of the socket and the only owner of the pending table that maps
// ids to waiting callers; a second goroutine only reads frames and hands them
// to the loop. Callers talk to the loop through channels:
//
//   - Send writes an outer command and waits for the reply with the same id.
//   - Expect registers interest in a nested reply id before the command that
//     produces it is sent; Waiter.Wait then blocks for it.
//   - Shutdown closes the browser, the socket, and waits for the loop to exit.
//
// Every wait is bounded by a caller-side timeout (5s by default). A timeout
// frees the caller only; the browser may still answer later and the late reply
// is dropped.
//
// # Errors
//
//   - *ConnectionError: the socket failed; every pending caller receives it
//   - *TimeoutError: one round trip exceeded its budget
//   - *ProtocolError: a reply was malformed or carried an error object
//   - *NotFoundError: a selector matched nothing
//   - ErrClosed: the connection is shut down
//
// # Example Usage
//
//	mux, err := cdp.Dial(ctx, wsURL, cdp.Options{})
//	if err != nil {
//	    return err
//	}
//	defer mux.Shutdown()
//
//	reply, err := mux.Send(ctx, cdp.NewCommand("Target.getTargets", nil))
package cdp
