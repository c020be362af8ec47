package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	wsHealthy    int32 = 0
	redisHealthy int32 = 1
)

const redisPingTimeout = 2 * time.Second

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type componentStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// HealthCheckResponse represents the health check response structure
type HealthCheckResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		WebSocket componentStatus `json:"websocket"`
		Redis     componentStatus `json:"redis"`
	} `json:"data"`
}

// SetWSHealthy sets the WebSocket health status
func SetWSHealthy(healthy bool) {
	if healthy {
		atomic.StoreInt32(&wsHealthy, 1)
	} else {
		atomic.StoreInt32(&wsHealthy, 0)
	}
}

// SetRedisHealthy sets the Redis health status
func SetRedisHealthy(healthy bool) {
	if healthy {
		atomic.StoreInt32(&redisHealthy, 1)
	} else {
		atomic.StoreInt32(&redisHealthy, 0)
	}
}

// NewMux routes /health and, when metrics is not nil, /metrics.
// A non-nil redis is pinged on every health request to refresh its status.
func NewMux(metrics http.Handler, redis Pinger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		handleHealthCheck(w, r, redis)
	})
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}

// StartHTTPServer serves health and metrics until stop is closed, then closes done
func StartHTTPServer(addr string, metrics http.Handler, redis Pinger, logger *zap.Logger, done chan struct{}, stop chan struct{}) {
	defer close(done)

	server := &http.Server{
		Addr:              addr,
		Handler:           NewMux(metrics, redis),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	} else {
		logger.Info("HTTP server stopped")
	}
}

func handleHealthCheck(w http.ResponseWriter, r *http.Request, redis Pinger) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    http.StatusMethodNotAllowed,
			"message": "method not allowed",
		})
		return
	}

	if redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), redisPingTimeout)
		SetRedisHealthy(redis.Ping(ctx) == nil)
		cancel()
	}

	now := time.Now().Unix()
	response := HealthCheckResponse{
		Code:    http.StatusOK,
		Message: "success",
	}

	if atomic.LoadInt32(&wsHealthy) == 1 {
		response.Data.WebSocket = componentStatus{"healthy", "WebSocket connection is open", now}
	} else {
		response.Data.WebSocket = componentStatus{"unhealthy", "WebSocket connection is not open", now}
		response.Code = http.StatusServiceUnavailable
	}

	if atomic.LoadInt32(&redisHealthy) == 1 {
		response.Data.Redis = componentStatus{"healthy", "Redis connection is active or disabled", now}
	} else {
		response.Data.Redis = componentStatus{"unhealthy", "Redis connection failed or closed", now}
		response.Code = http.StatusServiceUnavailable
	}

	if response.Code == http.StatusServiceUnavailable {
		response.Message = "service unavailable"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.Code)
	_ = json.NewEncoder(w).Encode(response)
}
