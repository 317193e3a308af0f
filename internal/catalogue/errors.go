package catalogue

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateStop    = errors.New("duplicate stop")
	ErrDuplicateBus     = errors.New("duplicate bus")
	ErrEmptyRoute       = errors.New("bus route has no stops")
	ErrNegativeDistance = errors.New("negative distance")
	ErrSealed           = errors.New("catalogue builder already built")
)

// UnknownStopError reports a reference to a stop that was never added.
type UnknownStopError struct {
	Name string
}

func (e *UnknownStopError) Error() string {
	return fmt.Sprintf("unknown stop %q", e.Name)
}

// NoDistanceDataError reports a stop pair with no road distance in either direction.
type NoDistanceDataError struct {
	From string
	To   string
}

func (e *NoDistanceDataError) Error() string {
	return fmt.Sprintf("no distance data between %q and %q", e.From, e.To)
}
