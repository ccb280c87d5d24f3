package ring

import (
	"sync/atomic"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Stats
// snapshot of a ring's counters since it was opened.
type Stats struct {
	Submitted   uint64
	Completed   uint64
	Failed      uint64
	Cancelled   uint64
	Enters      uint64
	MaxInFlight int64
	// time spent inside submit calls
	SubmitTime time.Duration
	// summed time from acceptance to resolution
	CompletionTime time.Duration
}

func (s Stats) MeanSubmit() time.Duration {
	if s.Submitted == 0 {
		return 0
	}
	return s.SubmitTime / time.Duration(s.Submitted)
}

func (s Stats) MeanCompletion() time.Duration {
	if s.Completed == 0 {
		return 0
	}
	return s.CompletionTime / time.Duration(s.Completed)
}

type stats struct {
	submitted      atomic.Uint64
	completed      atomic.Uint64
	failed         atomic.Uint64
	cancelled      atomic.Uint64
	enters         atomic.Uint64
	inFlight       atomic.Int64
	maxInFlight    atomic.Int64
	submitNanos    atomic.Int64
	completeNanos  atomic.Int64
	registry       *prometheus.Registry
	completionTime *prometheus.HistogramVec
}

func newStats() (*stats, error) {
	s := &stats{
		registry: prometheus.NewRegistry(),
		completionTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rio",
				Name:      "completion_seconds",
				Help:      "Time from submission to resolution of ring operations",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
			},
			[]string{"kind"},
		),
	}
	counter := func(name string, help string, v *atomic.Uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Namespace: "rio", Name: name, Help: help}, func() float64 {
			return float64(v.Load())
		})
	}
	gauge := func(name string, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Namespace: "rio", Name: name, Help: help}, func() float64 {
			return float64(v.Load())
		})
	}
	collectors := []prometheus.Collector{
		counter("submitted_total", "Operations accepted by the ring", &s.submitted),
		counter("completed_total", "Operations resolved", &s.completed),
		counter("failed_total", "Operations resolved with an error", &s.failed),
		counter("cancelled_total", "Operations cancelled by a failed linked predecessor", &s.cancelled),
		counter("enters_total", "Kernel submission calls", &s.enters),
		gauge("in_flight", "Operations accepted and not yet resolved", &s.inFlight),
		gauge("max_in_flight", "Peak of in_flight", &s.maxInFlight),
		s.completionTime,
	}
	for _, c := range collectors {
		if err := s.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *stats) accepted(spent time.Duration) {
	s.submitted.Add(1)
	s.submitNanos.Add(int64(spent))
	n := s.inFlight.Add(1)
	for {
		peak := s.maxInFlight.Load()
		if n <= peak || s.maxInFlight.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (s *stats) resolved(op *operation, now time.Time) {
	elapsed := now.Sub(op.submitted)
	s.completed.Add(1)
	s.completeNanos.Add(int64(elapsed))
	s.inFlight.Add(-1)
	if op.err != nil {
		s.failed.Add(1)
		if errors.Is(op.err, ErrLinkedCancelled) {
			s.cancelled.Add(1)
		}
	}
	s.completionTime.WithLabelValues(op.kind.String()).Observe(elapsed.Seconds())
}

func (s *stats) snapshot() Stats {
	return Stats{
		Submitted:      s.submitted.Load(),
		Completed:      s.completed.Load(),
		Failed:         s.failed.Load(),
		Cancelled:      s.cancelled.Load(),
		Enters:         s.enters.Load(),
		MaxInFlight:    s.maxInFlight.Load(),
		SubmitTime:     time.Duration(s.submitNanos.Load()),
		CompletionTime: time.Duration(s.completeNanos.Load()),
	}
}

func (s *stats) log(logger logrus.FieldLogger) {
	snap := s.snapshot()
	logger.WithFields(logrus.Fields{
		"submitted":       snap.Submitted,
		"completed":       snap.Completed,
		"failed":          snap.Failed,
		"cancelled":       snap.Cancelled,
		"enters":          snap.Enters,
		"max_in_flight":   snap.MaxInFlight,
		"submit_total":    snap.SubmitTime,
		"submit_mean":     snap.MeanSubmit(),
		"completion_mean": snap.MeanCompletion(),
	}).Info("rio: ring profile")
}
