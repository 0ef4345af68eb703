package kayak

import (
	"errors"
	"fmt"

	"github.com/robotalks/kayak/pkg/link"
)

// ParseError is kept in a Command when a line isn't a number of the
// configured format. The line is then sent as text.
type ParseError struct {
	Line string
	Err  error
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsTransportError tells whether err ends a session.
func IsTransportError(err error) bool {
	var terr *link.TransportError
	return errors.As(err, &terr)
}
