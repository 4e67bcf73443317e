package metrics

import (
	pl "github.com/HannahMarsh/PrettyLogger"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/data"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/interfaces"
)

// Multi fans every observation out to all non-nil sinks, stopping at the
// first failure.
type Multi []interfaces.MetricsSink

func NewMulti(sinks ...interfaces.MetricsSink) Multi {
	ret := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			ret = append(ret, s)
		}
	}
	return ret
}

func (m Multi) Observe(t data.TickMetrics) error {
	for i, s := range m {
		if err := s.Observe(t); err != nil {
			return pl.WrapError(err, "metrics.Multi.Observe(): sink %d failed at tick %d", i, t.Tick)
		}
	}
	return nil
}
