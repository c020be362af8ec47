package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/supermancell/chatprobe/internal/common"
)

const recordTimeout = 2 * time.Second

// EventRecord is the JSON document pushed for each event
type EventRecord struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
	Data      string `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      int    `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// NewEventRecord converts an event into its stored form
func NewEventRecord(evt common.Event) EventRecord {
	rec := EventRecord{
		SessionID: evt.SessionID,
		Kind:      evt.Kind.String(),
		Timestamp: evt.Time.UnixMilli(),
	}

	switch evt.Kind {
	case common.EventMessage:
		rec.Data = string(evt.Data)
	case common.EventError:
		if evt.Err != nil {
			rec.Error = evt.Err.Error()
		}
	case common.EventClosed:
		rec.Code = evt.Code
		rec.Reason = evt.Reason
	}
	return rec
}

// NewRecorderHandler pushes every event onto the list at key.
// Store failures are logged and never interrupt the session.
func NewRecorderHandler(store common.EventStore, key string, logger *zap.Logger) common.EventHandler {
	return func(evt common.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := store.PushEvent(ctx, key, NewEventRecord(evt)); err != nil {
			logger.Warn("failed to record event",
				zap.String("key", key),
				zap.String("event", evt.Kind.String()),
				zap.Error(err))
		}
	}
}
