package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/supermancell/chatprobe/internal/common"
	"github.com/supermancell/chatprobe/internal/config"
	"github.com/supermancell/chatprobe/internal/handler"
	httpserver "github.com/supermancell/chatprobe/internal/http"
	"github.com/supermancell/chatprobe/internal/metrics"
	"github.com/supermancell/chatprobe/internal/redisclient"
)

// BuildEventHandler wires console output, logs, metrics, health, the session
// summary and, when Redis is up, the event trail.
func BuildEventHandler(cfg config.AppConfig, log *zap.Logger, collector *metrics.Collector, redisClient *redisclient.Client) (*handler.Summary, common.EventHandler) {
	summary := handler.NewSummary()

	handlers := []common.EventHandler{
		handler.NewConsoleHandler(os.Stdout),
		handler.NewLogHandler(log),
		handler.NewMetricsHandler(collector),
		summary.Handle,
		healthHandler,
	}
	if redisClient != nil {
		handlers = append(handlers, handler.NewRecorderHandler(redisClient, cfg.Redis.EventsKey, log))
	}

	return summary, handler.Chain(handlers...)
}

func healthHandler(evt common.Event) {
	switch evt.Kind {
	case common.EventOpened:
		httpserver.SetWSHealthy(true)
	case common.EventClosed:
		httpserver.SetWSHealthy(false)
	}
}
