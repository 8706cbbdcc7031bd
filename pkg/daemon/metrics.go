package daemon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/classicvalues/nanotune/pkg/stage"
)

var (
	sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nanotune_sweeps_total",
		Help: "Characterization sweeps by outcome.",
	}, []string{"outcome"})

	calibrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nanotune_calibrations_total",
		Help: "Completed normalization calibrations.",
	})
)

// instrumentedStage counts sweep outcomes around the wrapped stage.
type instrumentedStage struct {
	inner stage.Stage
}

func (s instrumentedStage) Run(cfg stage.Config) (stage.Result, error) {
	res, err := s.inner.Run(cfg)
	switch {
	case err != nil:
		sweepsTotal.WithLabelValues("error").Inc()
	case res.Success:
		sweepsTotal.WithLabelValues("success").Inc()
	default:
		sweepsTotal.WithLabelValues("failure").Inc()
	}
	return res, err
}
