package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/supermancell/chatprobe/internal/config"
	httpserver "github.com/supermancell/chatprobe/internal/http"
	"github.com/supermancell/chatprobe/internal/logger"
	"github.com/supermancell/chatprobe/internal/metrics"
	"github.com/supermancell/chatprobe/internal/ws"
)

var (
	// Version is set by build flags
	Version = "dev"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting chatprobe",
		zap.String("version", Version),
		zap.String("url", cfg.Chat.WSURL),
		zap.Bool("proxy", cfg.Chat.UseProxy),
		zap.Bool("insecure_skip_verify", cfg.Chat.InsecureSkipVerify))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := ConnectRedis(cfg, log)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Warn("failed to close Redis client", zap.Error(err))
			}
		}()
	}

	mongoClient := ConnectMongoDB(cfg, log)
	if mongoClient != nil {
		defer func() {
			if err := mongoClient.Close(); err != nil {
				log.Warn("failed to close MongoDB client", zap.Error(err))
			}
		}()
	}

	if err := ResolveToken(ctx, &cfg, mongoClient, log); err != nil {
		log.Error("no chat token available", zap.Error(err))
		return 1
	}

	collector := metrics.NewCollector()
	if cfg.MetricsHTTPAddr != "" {
		httpDone := make(chan struct{})
		httpStop := make(chan struct{})
		var redisPinger httpserver.Pinger
		if redisClient != nil {
			redisPinger = redisClient
		}
		go httpserver.StartHTTPServer(cfg.MetricsHTTPAddr, collector.Handler(), redisPinger, log, httpDone, httpStop)
		defer func() {
			close(httpStop)
			<-httpDone
		}()
	}

	summary, eventHandler := BuildEventHandler(cfg, log, collector, redisClient)

	client := ws.NewClient(cfg.Chat, eventHandler, log)
	client.SetHandshakeObserver(collector.ObserveHandshake)

	runErr := client.Run(ctx)
	if runErr != nil {
		log.Error("websocket session ended with error",
			zap.String("session_id", client.SessionID()),
			zap.Error(runErr))
	}

	PersistSession(cfg, summary.Snapshot(), redisClient, mongoClient, log)

	if runErr != nil && !summary.Snapshot().Opened {
		return 1
	}
	return 0
}
