package relay

import "errors"

var (
	// ErrNoListener means no other context was listening; the message was dropped.
	ErrNoListener = errors.New("relay: could not establish connection, receiving end does not exist")
	// ErrNoResponse means every receiver finished without replying.
	ErrNoResponse = errors.New("relay: message channel closed before a response was received")
	ErrClosed     = errors.New("relay: endpoint closed")
	ErrPortClosed = errors.New("relay: port disconnected")

	ErrMissingType = errors.New("missing message type")
	ErrUnknownKind = errors.New("unknown message type")
)
