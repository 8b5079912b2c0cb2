package protocol

import (
	"errors"
	"fmt"
)

// ErrProtocol is matched by every *ProtocolError.
var ErrProtocol = errors.New("protocol violation")

// ProtocolError reports a peer that broke the exchange after the handshake.
type ProtocolError struct {
	Command Command
	Msg     string
	Err     error
}

func (e *ProtocolError) Error() string {
	s := fmt.Sprintf("%s: %s", e.Command, e.Msg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying error, if any.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrProtocol) hold for every ProtocolError.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

func violation(cmd Command, err error, format string, args ...any) *ProtocolError {
	return &ProtocolError{Command: cmd, Msg: fmt.Sprintf(format, args...), Err: err}
}
