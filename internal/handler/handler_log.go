package handler

import (
	"go.uber.org/zap"

	"github.com/supermancell/chatprobe/internal/common"
)

// NewLogHandler writes one structured log entry per event
func NewLogHandler(logger *zap.Logger) common.EventHandler {
	return func(evt common.Event) {
		fields := []zap.Field{
			zap.String("session_id", evt.SessionID),
			zap.String("event", evt.Kind.String()),
		}

		switch evt.Kind {
		case common.EventOpened:
			logger.Info("connection opened", fields...)
		case common.EventMessage:
			logger.Debug("frame received", append(fields,
				zap.Int("message_type", evt.MessageType),
				zap.Int("size", len(evt.Data)))...)
		case common.EventError:
			logger.Error("transport error", append(fields, zap.Error(evt.Err))...)
		case common.EventClosed:
			logger.Info("connection closed", append(fields,
				zap.Int("code", evt.Code),
				zap.String("reason", evt.Reason))...)
		}
	}
}
