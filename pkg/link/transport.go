package link

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	// ErrClosed indicates the transport was already closed.
	ErrClosed = errors.New("transport closed")
	// ErrShortWrite indicates the transport accepted fewer bytes than given.
	ErrShortWrite = errors.New("short write")
)

// Transport is a bidirectional byte stream opened and configured
// elsewhere. Read must not block when Available reports buffered bytes.
type Transport interface {
	io.Writer
	io.Reader
	io.Closer
	// Available returns the number of inbound bytes which can be read
	// without blocking.
	Available() int
}

// TransportError wraps failures of the underlying stream.
type TransportError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

type errReporter interface {
	Err() error
}

// Send writes p completely or returns a *TransportError.
func Send(t Transport, p []byte) error {
	n, err := t.Write(p)
	if err == nil && n < len(p) {
		err = ErrShortWrite
	}
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// Drain copies the currently buffered inbound bytes to w and returns
// immediately when none remain. It never waits for more data.
func Drain(t Transport, w io.Writer) (int, error) {
	var total int
	for avail := t.Available(); avail > 0; avail = t.Available() {
		buf := make([]byte, avail)
		n, err := t.Read(buf)
		if n > 0 && w != nil {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, werr
			}
		}
		total += n
		if err != nil {
			return total, &TransportError{Op: "read", Err: err}
		}
		if n == 0 {
			break
		}
	}
	if r, ok := t.(errReporter); ok {
		if err := r.Err(); err != nil {
			return total, &TransportError{Op: "read", Err: err}
		}
	}
	return total, nil
}

// Guard makes Close of t take effect once. Later calls return ErrClosed
// without reaching t.
func Guard(t Transport) Transport {
	if g, ok := t.(*guarded); ok {
		return g
	}
	return &guarded{Transport: t}
}

type guarded struct {
	Transport
	once sync.Once
}

func (g *guarded) Close() error {
	err := ErrClosed
	g.once.Do(func() {
		err = g.Transport.Close()
	})
	return err
}

func (g *guarded) Err() error {
	if r, ok := g.Transport.(errReporter); ok {
		return r.Err()
	}
	return nil
}
