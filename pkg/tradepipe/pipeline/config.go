package pipeline

import (
	"fmt"

	"github.com/randalmurphal/tradepipe/pkg/tradepipe/bus"
	"github.com/randalmurphal/tradepipe/pkg/tradepipe/config"
)

// OptionsFromConfig builds orchestrator options from a loaded config.
// Expected shape:
//
//	drain_timeout: 5s
//	queues:
//	  data:
//	    capacity: 256
//	    policy: drop
//	    enqueue_timeout: 50ms
//	  signal:
//	    capacity: 64
//	    policy: reject
//	    enqueue_timeout: 250ms
//	  order:
//	    capacity: 16
//	    policy: block
//
// Queues absent from the config keep their defaults; unknown policy
// names are an error.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	opts := Options{
		Queues:        DefaultQueues(),
		DrainTimeout:  cfg.Duration("drain_timeout", DefaultDrainTimeout),
		DrainInterval: cfg.Duration("drain_interval", 0),
	}

	queues := cfg.Sub("queues")
	for i, qc := range opts.Queues {
		if !queues.Has(qc.Name) {
			continue
		}
		section := queues.Sub(qc.Name)

		qc.Capacity = section.Int("capacity", qc.Capacity)
		qc.EnqueueTimeout = section.Duration("enqueue_timeout", qc.EnqueueTimeout)

		if name := section.String("policy", ""); name != "" {
			policy, err := bus.ParsePolicy(name)
			if err != nil {
				return Options{}, fmt.Errorf("queue %s: %w", qc.Name, err)
			}
			qc.Policy = policy
		}
		if qc.Capacity <= 0 {
			return Options{}, fmt.Errorf("queue %s: capacity must be positive, got %d", qc.Name, qc.Capacity)
		}

		opts.Queues[i] = qc
	}

	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	return opts, nil
}
