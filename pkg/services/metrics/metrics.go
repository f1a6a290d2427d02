// Package metrics exposes the node's monitoring endpoints: a Prometheus
// scrape target and a pprof server, each behind its own enable switch.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/torchat/torchat-go/pkg/config"
)

const shutdownTimeout = 5 * time.Second

// Service serves an HTTP endpoint for diagnostics.
type Service struct {
	http        []*http.Server
	config      config.BasicService
	log         *zap.Logger
	serviceType string
	started     bool
	lock        sync.Mutex
}

// newService configures a service for the given handler on every
// configured address.
func newService(cfg config.BasicService, handler http.Handler, serviceType string, log *zap.Logger) *Service {
	servers := make([]*http.Server, 0, len(cfg.Addresses))
	for _, addr := range cfg.Addresses {
		servers = append(servers, &http.Server{
			Addr:    addr,
			Handler: handler,
		})
	}
	return &Service{
		http:        servers,
		config:      cfg,
		serviceType: serviceType,
		log:         log.With(zap.String("service", serviceType)),
	}
}

// Start runs the service unless it is disabled in the configuration.
// Serve errors other than a clean close are logged, not returned: the
// monitoring surface must not take the node down.
func (ms *Service) Start() {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	if !ms.config.Enabled {
		ms.log.Info("service hasn't started since it's disabled")
		return
	}
	if ms.started {
		return
	}
	ms.started = true
	for _, srv := range ms.http {
		ms.log.Info("starting service", zap.String("endpoint", srv.Addr))
		go func(srv *http.Server) {
			err := srv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				ms.log.Error("failed to start service", zap.String("endpoint", srv.Addr), zap.Error(err))
			}
		}(srv)
	}
}

// ShutDown stops the service.
func (ms *Service) ShutDown() {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	if !ms.started {
		return
	}
	ms.started = false
	for _, srv := range ms.http {
		ms.log.Info("shutting down service", zap.String("endpoint", srv.Addr))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err := srv.Shutdown(ctx)
		cancel()
		if err != nil {
			ms.log.Error("can't shut service down", zap.String("endpoint", srv.Addr), zap.Error(err))
		}
	}
}
