package metrics

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/torchat/torchat-go/pkg/config"
)

// NewPrometheusService creates a new service for the Prometheus metrics
// endpoint.
func NewPrometheusService(cfg config.BasicService, log *zap.Logger) *Service {
	return newService(cfg, promhttp.Handler(), "Prometheus", log)
}
