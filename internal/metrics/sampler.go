package metrics

import "context"

// Sampler refreshes the occupancy gauges on every driver tick.
type Sampler struct {
	metrics *Metrics
	source  Counter
}

func NewSampler(m *Metrics, source Counter) *Sampler {
	return &Sampler{metrics: m, source: source}
}

func (s *Sampler) Tick(context.Context) error {
	s.metrics.Sample(s.source)
	return nil
}
