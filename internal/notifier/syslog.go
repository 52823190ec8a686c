package notifier

import (
	"fmt"
	"log/syslog"
)

// SystemLog records the one-line summary of a run that found activity
type SystemLog interface {
	Info(msg string) error
}

// Syslog writes summaries to the local syslog daemon. The connection is
// opened on first use so debug runs never touch it.
type Syslog struct {
	Tag    string
	writer *syslog.Writer
}

// NewSyslog creates a system log writer with the given tag
func NewSyslog(tag string) *Syslog {
	return &Syslog{Tag: tag}
}

// Info logs msg at LOG_INFO
func (s *Syslog) Info(msg string) error {
	if s.writer == nil {
		w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, s.Tag)
		if err != nil {
			return fmt.Errorf("opening syslog: %w", err)
		}
		s.writer = w
	}
	return s.writer.Info(msg)
}

// Close releases the syslog connection, if one was opened
func (s *Syslog) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
