package realtime

import "errors"

var (
	// ErrConnectionFailed indicates the initial connect did not succeed.
	ErrConnectionFailed = errors.New("connection failed")
	// ErrConnectionLost indicates an established connection dropped.
	ErrConnectionLost = errors.New("connection lost")
	// ErrReconnectExhausted indicates the bounded reconnection policy
	// gave up. The session requires an explicit user retry.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	// ErrProtocolError indicates a malformed or unexpected inbound message.
	ErrProtocolError = errors.New("protocol error")
	// ErrNotConnected is returned when sending before a successful Dial.
	ErrNotConnected = errors.New("not connected")
	// ErrConnClosed is returned when using a connection after Close.
	ErrConnClosed = errors.New("connection closed")
	// ErrSessionClosed is returned by engine operations after Disconnect.
	ErrSessionClosed = errors.New("session closed")
)
