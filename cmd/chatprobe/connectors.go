package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/supermancell/chatprobe/internal/config"
	httpserver "github.com/supermancell/chatprobe/internal/http"
	"github.com/supermancell/chatprobe/internal/mongodb"
	"github.com/supermancell/chatprobe/internal/redisclient"
)

// ConnectRedis connects to Redis when REDIS_ADDR is set. Failures disable the event trail.
func ConnectRedis(cfg config.AppConfig, log *zap.Logger) *redisclient.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
	if err != nil {
		log.Warn("Redis unavailable, event trail disabled",
			zap.String("addr", cfg.Redis.Addr),
			zap.Error(err))
		httpserver.SetRedisHealthy(false)
		return nil
	}

	log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	return redisClient
}

// ConnectMongoDB connects to MongoDB when MONGODB_ADDR is set
func ConnectMongoDB(cfg config.AppConfig, log *zap.Logger) *mongodb.Client {
	if cfg.MongoDB.Addr == "" {
		return nil
	}

	mongoClient, err := mongodb.NewClient(cfg.MongoDB.Addr, cfg.MongoDB.Database)
	if err != nil {
		log.Warn("MongoDB unavailable, session records disabled", zap.Error(err))
		return nil
	}

	log.Info("connected to MongoDB", zap.String("database", cfg.MongoDB.Database))
	return mongoClient
}

// tokenSource is satisfied by *mongodb.Client
type tokenSource interface {
	GetChatToken(ctx context.Context) (string, error)
}

// ResolveToken falls back to the token stored in MongoDB when CHAT_TOKEN is empty
func ResolveToken(ctx context.Context, cfg *config.AppConfig, mongoClient *mongodb.Client, log *zap.Logger) error {
	var source tokenSource
	if mongoClient != nil {
		source = mongoClient
	}
	return resolveToken(ctx, cfg, source, log)
}

func resolveToken(ctx context.Context, cfg *config.AppConfig, source tokenSource, log *zap.Logger) error {
	if cfg.RequireToken() == nil || source == nil {
		return cfg.RequireToken()
	}

	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	token, err := source.GetChatToken(lookupCtx)
	if err != nil {
		log.Warn("failed to load chat token from MongoDB", zap.Error(err))
		return cfg.RequireToken()
	}

	cfg.Chat.Token = token
	log.Info("chat token loaded from MongoDB")
	return cfg.RequireToken()
}
