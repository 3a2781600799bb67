// Package metrics exports gateway operation telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sagarc03/assetgate"
)

// DefaultNamespace prefixes every metric name when no namespace is given.
const DefaultNamespace = "assetgate"

// PrometheusObserver implements assetgate.Observer.
type PrometheusObserver struct {
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	total    *prometheus.CounterVec
}

// NewPrometheusObserver registers the gateway metrics with reg. A nil reg
// means prometheus.DefaultRegisterer. Registering twice reuses the existing
// collectors.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of gateway operations, including store round trips.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Count of failed gateway operations by error kind.",
		}, []string{"operation", "kind"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Count of gateway operations.",
		}, []string{"operation"}),
	}

	var err error
	if o.duration, err = register(reg, o.duration); err != nil {
		return nil, err
	}
	if o.errors, err = register(reg, o.errors); err != nil {
		return nil, err
	}
	if o.total, err = register(reg, o.total); err != nil {
		return nil, err
	}

	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register gateway metric: %w", err)
	}
	return c, nil
}

// ObserveOperation records one gateway call.
func (o *PrometheusObserver) ObserveOperation(op string, d time.Duration, err error) {
	if o == nil {
		return
	}
	o.total.WithLabelValues(op).Inc()
	o.duration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		o.errors.WithLabelValues(op, assetgate.KindOf(err).String()).Inc()
	}
}

// Handler serves the metrics gathered by g. A nil g means
// prometheus.DefaultGatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
