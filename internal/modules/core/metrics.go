package core

import (
	"context"
	"time"

	"github.com/eskrenkovic/mediator-go"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "session_ledger"

var _ mediator.PipelineBehavior = (*RequestMetricsBehavior)(nil)

// RequestMetricsBehavior counts handled requests by type and outcome and
// observes their latency.
type RequestMetricsBehavior struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewRequestMetricsBehavior(registerer prometheus.Registerer) (*RequestMetricsBehavior, error) {
	b := &RequestMetricsBehavior{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Handled requests by request type and outcome code.",
			},
			[]string{"request", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "Request handling latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"request"},
		),
	}

	if registerer != nil {
		for _, c := range []prometheus.Collector{b.requests, b.duration} {
			if err := registerer.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return b, nil
}

func (b *RequestMetricsBehavior) Handle(
	ctx context.Context,
	request interface{},
	next mediator.RequestHandlerFunc,
) (interface{}, error) {
	name := requestName(request)
	start := time.Now()

	response, err := next(ctx, request)

	b.duration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	b.requests.WithLabelValues(name, outcome(err)).Inc()

	return response, err
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code, ok := CodeOf(err); ok {
		return string(code)
	}
	return "error"
}
