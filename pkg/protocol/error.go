package protocol

import (
	"errors"

	lserrors "github.com/jsmonitor/livesync/internal/errors"
)

// Sentinel errors.
var (
	// ErrMalformed marks a frame that is not a valid message.
	ErrMalformed = errors.New("protocol: malformed message")

	// ErrUnknownType marks a well-formed frame of a type this client does
	// not handle.
	ErrUnknownType = errors.New("protocol: unknown message type")
)

// malformed returns a coded E301 error that matches ErrMalformed.
func malformed(format string, args ...any) error {
	return lserrors.New("E301").WithDetailf(format, args...).Wrap(ErrMalformed)
}
