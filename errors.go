package stagehand

import "errors"

var (
	// ErrNotConnected is returned when sending a request
	// without a connected host.
	ErrNotConnected = errors.New("not connected to a host")

	// ErrNotStarted is returned from [*Transport.Connect]
	// if the receive loop is not running.
	ErrNotStarted = errors.New("transport not started")

	// ErrClosed is returned from [*Transport.Start] after [*Transport.Close].
	ErrClosed = errors.New("transport closed")
)

// AddressError is returned from [*Transport.Connect]
// and [*Transport.ConnectAddr] for an address that cannot be dialed.
type AddressError struct {
	Addr string
	Err  error
}

func (e *AddressError) Error() string {
	return "invalid host address " + e.Addr + ": " + e.Err.Error()
}

func (e *AddressError) Unwrap() error {
	return e.Err
}
