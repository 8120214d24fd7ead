// Package conductor speaks the conductor's websocket protocol.
//
// Both the admin and the app interfaces exchange msgpack-encoded wire
// messages over a binary websocket. A request carries an id and an inner
// msgpack payload shaped {type, value}; the matching response carries the
// same id. Client multiplexes concurrent requests over one socket.
//
// AdminClient wraps the control-plane operations used by the gateway and
// AppClient the data-plane zome call.
package conductor
