package lazyq

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// searchMetrics holds prometheus metrics registered for the builder.
type searchMetrics struct {
	roundTrips *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	excerpts   *prometheus.CounterVec
}

func newSearchMetrics(reg prometheus.Registerer) (*searchMetrics, error) {
	m := &searchMetrics{
		roundTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyq",
			Subsystem: "search",
			Name:      "round_trips_total",
			Help:      "Total search round trips by backend and status.",
		}, []string{"backend", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lazyq",
			Subsystem: "search",
			Name:      "round_trip_duration_seconds",
			Help:      "Search round trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
		excerpts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyq",
			Subsystem: "search",
			Name:      "excerpts_total",
			Help:      "Total excerpt requests by backend and status.",
		}, []string{"backend", "status"}),
	}
	if err := registerOrReuse(reg, &m.roundTrips); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.excerpts); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("lazyq: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("lazyq: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for round trips.
type observer struct {
	logger  *zap.Logger
	metrics *searchMetrics
}

func newObserver(logger *zap.Logger, reg prometheus.Registerer) (*observer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var m *searchMetrics
	if reg != nil {
		var err error
		m, err = newSearchMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (o *observer) observeSearch(backend, index string, start time.Time, matches int, err error) {
	dur := time.Since(start)

	if o.metrics != nil {
		o.metrics.roundTrips.WithLabelValues(backend, status(err)).Inc()
		o.metrics.duration.WithLabelValues(backend).Observe(dur.Seconds())
	}

	if err == nil {
		o.logger.Debug("search completed",
			zap.String("backend", backend),
			zap.String("index", index),
			zap.Int("matches", matches),
			zap.Duration("duration", dur),
		)
	}
}

func (o *observer) observeExcerpt(backend string, err error) {
	if o.metrics != nil {
		o.metrics.excerpts.WithLabelValues(backend, status(err)).Inc()
	}
}
