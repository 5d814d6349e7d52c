package log

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// TraceFileMode is the permission of newly created trace files. Traces carry
// session IDs, so they are readable by the owner only.
const TraceFileMode = 0o600

// FileLogger appends CBOR trace records to a file.
// It is safe for concurrent use.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
	failed  int
}

// NewFileLogger opens path for appending, creating it with TraceFileMode.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, TraceFileMode)
	if err != nil {
		return nil, err
	}
	return &FileLogger{file: f, encoder: newTraceEncoder(f)}, nil
}

// Log implements Logger. Records that cannot be written are counted, not
// reported; see Failed. Log after Close is a no-op.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.encoder.Encode(event); err != nil {
		l.failed++
	}
}

// Failed returns the number of records that could not be written.
func (l *FileLogger) Failed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failed
}

// Close closes the file. Subsequent calls return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
