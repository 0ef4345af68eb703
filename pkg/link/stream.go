package link

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/golang/glog"
)

// Stream implements Transport over an io.ReadWriteCloser. A background
// goroutine keeps reading into a buffer so Available never blocks.
type Stream struct {
	rwc io.ReadWriteCloser

	lock   sync.Mutex
	buf    bytes.Buffer
	err    error
	closed bool

	dataCh chan struct{}
	doneCh chan struct{}
}

// NewStream wraps rwc and starts the reader.
func NewStream(rwc io.ReadWriteCloser) *Stream {
	s := &Stream{
		rwc:    rwc,
		dataCh: make(chan struct{}, 1),
		doneCh: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	defer close(s.doneCh)
	buf := make([]byte, 256)
	for {
		n, err := s.rwc.Read(buf)
		if err != nil && os.IsTimeout(err) {
			err = nil
		}
		s.lock.Lock()
		if n > 0 {
			s.buf.Write(buf[:n])
		}
		closed := s.closed
		if err != nil && !closed {
			s.err = err
		}
		s.lock.Unlock()
		if n > 0 {
			select {
			case s.dataCh <- struct{}{}:
			default:
			}
		}
		if err != nil || closed {
			if err != nil && !closed && err != io.EOF {
				glog.Warningf("link read: %v", err)
			}
			return
		}
	}
}

// Available implements Transport.
func (s *Stream) Available() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.buf.Len()
}

// Read implements Transport. It returns buffered bytes only, and
// (0, nil) when nothing is buffered and the reader is still healthy.
func (s *Stream) Read(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.buf.Len() > 0 {
		return s.buf.Read(p)
	}
	if s.err != nil {
		return 0, s.err
	}
	if s.closed {
		return 0, ErrClosed
	}
	return 0, nil
}

// Write implements Transport.
func (s *Stream) Write(p []byte) (int, error) {
	s.lock.Lock()
	closed := s.closed
	s.lock.Unlock()
	if closed {
		return 0, ErrClosed
	}
	return s.rwc.Write(p)
}

// Close implements Transport. Only the first call closes the underlying
// stream, later calls return ErrClosed.
func (s *Stream) Close() error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.lock.Unlock()
	return s.rwc.Close()
}

// Err returns the error which stopped the reader, nil if still healthy
// or stopped by Close. io.EOF is reported as is.
func (s *Stream) Err() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.err
}

// DataReady is signaled when new inbound bytes are buffered.
func (s *Stream) DataReady() <-chan struct{} {
	return s.dataCh
}

// Done is closed when the reader stopped.
func (s *Stream) Done() <-chan struct{} {
	return s.doneCh
}
