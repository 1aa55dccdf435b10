package middleware

import (
	"context"
	"time"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

type instrumented struct {
	next     ports.SessionStore
	duration *prometheus.HistogramVec
}

// NewMetricsMiddleware records the latency and outcome of every store call in
// foreman_session_store_seconds{op,result}, registered on reg.
func NewMetricsMiddleware(reg prometheus.Registerer) Middleware {
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "foreman_session_store_seconds",
		Help:    "Latency of session store calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "result"})
	reg.MustRegister(duration)

	return func(next ports.SessionStore) ports.SessionStore {
		return &instrumented{next: next, duration: duration}
	}
}

func (m *instrumented) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.duration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}

func (m *instrumented) Save(ctx context.Context, workspace string, session domain.MachineSession) error {
	start := time.Now()
	err := m.next.Save(ctx, workspace, session)
	m.observe("save", start, err)
	return err
}

func (m *instrumented) Delete(ctx context.Context, workspace string, id domain.MachineID) error {
	start := time.Now()
	err := m.next.Delete(ctx, workspace, id)
	m.observe("delete", start, err)
	return err
}

func (m *instrumented) List(ctx context.Context, workspace string) ([]domain.MachineSession, error) {
	start := time.Now()
	sessions, err := m.next.List(ctx, workspace)
	m.observe("list", start, err)
	return sessions, err
}
