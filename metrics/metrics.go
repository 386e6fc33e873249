// Package metrics exports Prometheus metrics about tracked operations.
package metrics

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/bigtable-lro/sdk-go/lro"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/status"
)

const (
	Namespace = "btlro"

	MethodLabel  = "method"
	ResultLabel  = "result"
	OutcomeLabel = "outcome"

	resultOK = "OK"
)

// A Collector is an [lro.Observer] that counts submissions, polls and wait outcomes per method.
type Collector struct {
	submissions  *prometheus.CounterVec
	polls        *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
}

var _ lro.Observer = (*Collector)(nil)

// NewCollector creates an unregistered [Collector].
func NewCollector() *Collector {
	return &Collector{
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "submissions_total",
				Help:      "Total number of operation submissions by gRPC result code",
			},
			[]string{MethodLabel, ResultLabel},
		),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "polls_total",
				Help:      "Total number of operation status calls by gRPC result code",
			},
			[]string{MethodLabel, ResultLabel},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "outcomes_total",
				Help:      "Total number of finished waits by outcome",
			},
			[]string{MethodLabel, OutcomeLabel},
		),
		pollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "poll_duration_seconds",
				Help:      "Latency of operation status calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{MethodLabel},
		),
	}
}

// Register registers all metrics of c with registerer.
func (c *Collector) Register(registerer prometheus.Registerer) error {
	var errs []error
	for _, collector := range []prometheus.Collector{c.submissions, c.polls, c.outcomes, c.pollDuration} {
		errs = append(errs, registerer.Register(collector))
	}
	return errors.Join(errs...)
}

func result(err error) string {
	if err == nil {
		return resultOK
	}
	return status.Code(err).String()
}

func (c *Collector) ObserveSubmit(method string, err error) {
	c.submissions.WithLabelValues(method, result(err)).Inc()
}

func (c *Collector) ObservePoll(method string, latency time.Duration, err error) {
	c.polls.WithLabelValues(method, result(err)).Inc()
	c.pollDuration.WithLabelValues(method).Observe(latency.Seconds())
}

func (c *Collector) ObserveOutcome(method string, outcome lro.Outcome) {
	c.outcomes.WithLabelValues(method, string(outcome)).Inc()
}

func (*Collector) ObserveSnapshot(context.Context, string, *longrunningpb.Operation) {}
