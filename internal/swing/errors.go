package swing

import (
	"errors"

	"github.com/chaz8081/ptbaby/internal/ble/protocol"
)

var (
	// ErrInvalidArgument reports an out-of-range value; nothing was sent.
	ErrInvalidArgument = protocol.ErrInvalidArgument
	// ErrDeviceUnreachable reports that resolution or connection failed
	// after the bounded retries.
	ErrDeviceUnreachable = errors.New("device unreachable")
	// ErrCommandFailed reports a transport failure after the link was up.
	// The link has been dropped; the next command reconnects.
	ErrCommandFailed = errors.New("command failed")
	// ErrSubscribeFailed is logged when the notify characteristic cannot be
	// subscribed. It never reaches callers.
	ErrSubscribeFailed = errors.New("subscribe failed")
)
