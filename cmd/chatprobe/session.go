package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/supermancell/chatprobe/internal/config"
	"github.com/supermancell/chatprobe/internal/handler"
	"github.com/supermancell/chatprobe/internal/mongodb"
	"github.com/supermancell/chatprobe/internal/redisclient"
)

const persistTimeout = 5 * time.Second

// PersistSession stores the run summary in Redis and MongoDB when they are available
func PersistSession(cfg config.AppConfig, summary handler.SessionSummary, redisClient *redisclient.Client, mongoClient *mongodb.Client, log *zap.Logger) {
	if summary.SessionID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if redisClient != nil {
		if err := redisClient.StoreSession(ctx, summary.SessionID, sessionFields(cfg, summary)); err != nil {
			log.Warn("failed to store session in Redis", zap.Error(err))
		}
	}

	if mongoClient != nil {
		if err := mongoClient.UpsertSession(ctx, newSessionRecord(cfg, summary, time.Now())); err != nil {
			log.Warn("failed to store session in MongoDB", zap.Error(err))
		}
	}
}

func newSessionRecord(cfg config.AppConfig, s handler.SessionSummary, now time.Time) *mongodb.Session {
	record := &mongodb.Session{
		ID:            s.SessionID,
		URL:           cfg.Chat.WSURL,
		Opened:        s.Opened,
		Frames:        s.Frames,
		BytesReceived: s.BytesReceived,
		Errors:        s.Errors,
		LastError:     s.LastError,
		CloseCode:     s.CloseCode,
		CloseReason:   s.CloseReason,
		RecordedAt:    now.UTC().Format(time.RFC3339),
	}
	if !s.OpenedAt.IsZero() {
		record.OpenedAt = s.OpenedAt.UnixMilli()
	}
	if !s.ClosedAt.IsZero() {
		record.ClosedAt = s.ClosedAt.UnixMilli()
	}
	return record
}

func sessionFields(cfg config.AppConfig, s handler.SessionSummary) map[string]interface{} {
	return map[string]interface{}{
		"url":            cfg.Chat.WSURL,
		"opened":         s.Opened,
		"frames":         s.Frames,
		"bytes_received": s.BytesReceived,
		"errors":         s.Errors,
		"last_error":     s.LastError,
		"close_code":     s.CloseCode,
		"close_reason":   s.CloseReason,
		"recorded_at":    time.Now().Unix(),
	}
}
