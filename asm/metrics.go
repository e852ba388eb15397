// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	curHeight      prometheus.Gauge
	mmrLeaves      prometheus.Gauge
	blocksReplayed prometheus.Counter
	messages       prometheus.Counter
	fatal          prometheus.Counter
}

func newMetrics(namespace string, registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		curHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cur_height",
			Help:      "L1 height of the current anchor",
		}),
		mmrLeaves: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mmr_leaves",
			Help:      "Number of manifests in the accumulator",
		}),
		blocksReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_replayed_total",
			Help:      "Number of L1 blocks applied by the state machine",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Number of L1 block commitments received",
		}),
		fatal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fatal_total",
			Help:      "Number of fatal errors that stopped the worker",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.curHeight),
		registerer.Register(m.mmrLeaves),
		registerer.Register(m.blocksReplayed),
		registerer.Register(m.messages),
		registerer.Register(m.fatal),
	)
	return m, errs.Err
}

func (m *metrics) observeState(s *AsmState) {
	m.curHeight.Set(float64(s.Anchor.Height))
	m.mmrLeaves.Set(float64(s.Accumulator.Entries))
}
