package link

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
)

// Capture records the traffic of a transport, one line per chunk:
//
//	15:04:05.000 > 00 38 00 38
//	15:04:05.012 < 4f 4b 0d 0a
type Capture struct {
	W   io.Writer
	Now func() time.Time

	lock sync.Mutex
}

// OpenCapture creates a Capture into a file rotated at maxSizeMB.
func OpenCapture(path string, maxSizeMB int) *Capture {
	return &Capture{W: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		LocalTime:  true,
	}}
}

// Record writes one line for p sent (out) or received.
func (c *Capture) Record(out bool, p []byte) {
	if len(p) == 0 {
		return
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	dir := '<'
	if out {
		dir = '>'
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	fmt.Fprintf(c.W, "%s %c % x\n", now().Format("15:04:05.000"), dir, p)
}

// Close closes the underlying writer if it's a Closer.
func (c *Capture) Close() error {
	if closer, ok := c.W.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Tap returns t with its traffic recorded to c.
func (c *Capture) Tap(t Transport) Transport {
	return &tapped{Transport: t, capture: c}
}

type tapped struct {
	Transport
	capture *Capture
}

func (t *tapped) Write(p []byte) (int, error) {
	n, err := t.Transport.Write(p)
	t.capture.Record(true, p[:n])
	return n, err
}

func (t *tapped) Read(p []byte) (int, error) {
	n, err := t.Transport.Read(p)
	t.capture.Record(false, p[:n])
	return n, err
}

func (t *tapped) Err() error {
	if r, ok := t.Transport.(errReporter); ok {
		return r.Err()
	}
	return nil
}
