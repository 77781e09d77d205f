// Package kscanmetrics exports key scan activity as Prometheus metrics.
package kscanmetrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ykb/core"
	"ykb/kscan"
)

// Metrics holds the scan engine collectors.
type Metrics struct {
	presses      *prometheus.CounterVec
	releases     *prometheus.CounterVec
	taskExits    *prometheus.CounterVec
	tasksRunning prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// half is attached to every series as a constant label.
func New(reg prometheus.Registerer, half string) (*Metrics, error) {
	labels := prometheus.Labels{"half": half}
	m := &Metrics{
		presses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ykb_key_presses_total",
			Help:        "Key press edges detected, by global key index",
			ConstLabels: labels,
		}, []string{"key"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ykb_key_releases_total",
			Help:        "Key release edges detected, by global key index",
			ConstLabels: labels,
		}, []string{"key"}),
		taskExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ykb_scan_task_exits_total",
			Help:        "Scan goroutines that stopped after a hardware error",
			ConstLabels: labels,
		}, []string{"unit"}),
		tasksRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ykb_scan_tasks_running",
			Help:        "Scan goroutines currently running",
			ConstLabels: labels,
		}),
	}

	for _, c := range []prometheus.Collector{m.presses, m.releases, m.taskExits, m.tasksRunning} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Listener counts edges.
func (m *Metrics) Listener() kscan.Listener {
	return kscan.Listener{
		OnPress:   func(i uint16) { m.presses.WithLabelValues(strconv.Itoa(int(i))).Inc() },
		OnRelease: func(i uint16) { m.releases.WithLabelValues(strconv.Itoa(int(i))).Inc() },
	}
}

// Hooks tracks scan goroutines. next, if non-nil, is called as well.
func (m *Metrics) Hooks(next kscan.Hooks) kscan.Hooks {
	return kscan.Hooks{
		TaskStarted: func(unit string) {
			m.tasksRunning.Inc()
			if next.TaskStarted != nil {
				next.TaskStarted(unit)
			}
		},
		TaskExited: func(err *kscan.TaskError) {
			m.tasksRunning.Dec()
			m.taskExits.WithLabelValues(err.Unit).Inc()
			if next.TaskExited != nil {
				next.TaskExited(err)
			}
		},
	}
}

// Server serves /metrics and /health.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

// NewServer returns a server for the collectors gathered by g.
func NewServer(addr string, g prometheus.Gatherer, log *slog.Logger) *Server {
	if log == nil {
		log = core.Logger()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return &Server{
		srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log: log,
	}
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("metrics server listening", "addr", s.srv.Addr)
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
