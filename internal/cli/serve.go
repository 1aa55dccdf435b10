package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/foreman/pkg/adapters/http"
	"github.com/aretw0/foreman/pkg/adapters/memory"
	"github.com/aretw0/foreman/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownTimeout is how long outstanding requests get once a server is asked to stop.
const shutdownTimeout = 5 * time.Second

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// MetricsHandler serves reg in the Prometheus exposition format.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// NewSimulator builds the development machine service publishing on publisher,
// with a gauge of the machines it currently holds registered on reg.
func NewSimulator(publisher ports.Publisher, reg prometheus.Registerer, logger *slog.Logger, opts ...memory.MachineOption) *memory.MachineService {
	opts = append([]memory.MachineOption{memory.WithMachineLogger(logger)}, opts...)
	sim := memory.NewMachineService(publisher, opts...)
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "foreman_simulator_machines",
		Help: "Machines held by the development machine service",
	}, func() float64 {
		machines, err := sim.ListMachines(context.Background(), "")
		if err != nil {
			return 0
		}
		return float64(len(machines))
	}))
	return sim
}

// ServeHandler exposes svc over REST with /metrics served from reg.
func ServeHandler(svc ports.MachineService, reg *prometheus.Registry, logger *slog.Logger) http.Handler {
	return httpAdapter.NewHandler(svc,
		httpAdapter.WithServerLogger(logger),
		httpAdapter.WithMetricsHandler(MetricsHandler(reg)),
	)
}

// ListenAndServe runs handler on addr until ctx is done, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("failed to close server: %w", err)
			}
		}
		logger.Info("HTTP server stopped", "addr", addr)
		return nil
	}
}
