package errlog

import (
	"fmt"
	"io"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/wadc/flowsync/internal/config"
)

// Sink appends export failures to a writer.
type Sink struct {
	mu     sync.Mutex
	w      io.WriteCloser
	closed bool
}

// New opens a size-rotated sink at cfg.Path. The file is created on the
// first write.
func New(cfg config.ErrorLogConfig) *Sink {
	return NewWriter(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	})
}

// NewWriter wraps an arbitrary writer.
func NewWriter(w io.WriteCloser) *Sink {
	return &Sink{w: w}
}

// RecordFailure appends one entry.
func (s *Sink) RecordFailure(jobID, endTime, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	_, err := fmt.Fprintf(s.w,
		"Request %s experienced a problem at %s with the following message:\n%s\n\n",
		jobID, endTime, message,
	)
	if err != nil {
		return fmt.Errorf("write error log: %w", err)
	}
	return nil
}

// Close closes the underlying file. Later writes fail; lumberjack would
// otherwise reopen the file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.w.Close()
}
