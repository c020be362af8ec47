package handler

import (
	"sync"
	"time"

	"github.com/supermancell/chatprobe/internal/common"
)

// SessionSummary aggregates what happened during one run
type SessionSummary struct {
	SessionID     string
	OpenedAt      time.Time
	ClosedAt      time.Time
	Opened        bool
	Closed        bool
	Frames        int
	BytesReceived int
	Errors        int
	LastError     string
	CloseCode     int
	CloseReason   string
}

// Summary collects a SessionSummary from the event stream
type Summary struct {
	mu      sync.RWMutex
	summary SessionSummary
}

// NewSummary creates an empty summary collector
func NewSummary() *Summary {
	return &Summary{}
}

// Handle is a common.EventHandler
func (s *Summary) Handle(evt common.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summary.SessionID = evt.SessionID
	switch evt.Kind {
	case common.EventOpened:
		s.summary.Opened = true
		s.summary.OpenedAt = evt.Time
	case common.EventMessage:
		s.summary.Frames++
		s.summary.BytesReceived += len(evt.Data)
	case common.EventError:
		s.summary.Errors++
		if evt.Err != nil {
			s.summary.LastError = evt.Err.Error()
		}
	case common.EventClosed:
		s.summary.Closed = true
		s.summary.ClosedAt = evt.Time
		s.summary.CloseCode = evt.Code
		s.summary.CloseReason = evt.Reason
	}
}

// Snapshot returns a copy of the current summary
func (s *Summary) Snapshot() SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}
