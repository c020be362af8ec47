package handler

import (
	"github.com/supermancell/chatprobe/internal/common"
	"github.com/supermancell/chatprobe/internal/metrics"
)

// NewMetricsHandler feeds every event into the Prometheus collector
func NewMetricsHandler(collector *metrics.Collector) common.EventHandler {
	return collector.RecordEvent
}
