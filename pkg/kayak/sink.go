package kayak

import (
	"bytes"
	"sync"

	"github.com/golang/glog"
)

// maxLogLine flushes inbound bytes that never see a newline.
const maxLogLine = 256

// LineLogger is a diagnostic sink logging inbound bytes one line at a
// time. Partial lines are held until the newline arrives.
type LineLogger struct {
	// Logf defaults to glog.Infof.
	Logf func(format string, args ...interface{})

	lock sync.Mutex
	buf  []byte
}

// Write implements io.Writer.
func (l *LineLogger) Write(p []byte) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.buf = append(l.buf, p...)
	for {
		pos := bytes.IndexByte(l.buf, '\n')
		if pos < 0 {
			break
		}
		l.log(l.buf[:pos])
		l.buf = l.buf[pos+1:]
	}
	if len(l.buf) >= maxLogLine {
		l.log(l.buf)
		l.buf = nil
	}
	return len(p), nil
}

// Flush logs a pending partial line.
func (l *LineLogger) Flush() {
	l.lock.Lock()
	defer l.lock.Unlock()
	if len(l.buf) > 0 {
		l.log(l.buf)
		l.buf = nil
	}
}

func (l *LineLogger) log(line []byte) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(line) == 0 {
		return
	}
	logf := l.Logf
	if logf == nil {
		logf = glog.Infof
	}
	logf("< %q", line)
}
