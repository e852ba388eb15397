// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package l1

import (
	"context"
	"time"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/anchorvm/asm"
)

// TipSource reports the best block of the base chain.
type TipSource interface {
	Tip(ctx context.Context) (asm.L1BlockCommitment, error)
}

// Follower polls the base chain tip and emits it whenever it changes. Blocks
// between two emitted tips are left to the consumer.
type Follower struct {
	tips     TipSource
	interval time.Duration
	log      log.Logger
}

func NewFollower(tips TipSource, interval time.Duration, logger log.Logger) *Follower {
	return &Follower{
		tips:     tips,
		interval: interval,
		log:      logger,
	}
}

// Run emits tips on [out] until [ctx] is done. It never closes [out].
func (f *Follower) Run(ctx context.Context, out chan<- asm.L1BlockCommitment) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	var (
		last    asm.L1BlockCommitment
		hasLast bool
	)
	for {
		tip, err := f.tips.Tip(ctx)
		switch {
		case err != nil:
			f.log.Warn("failed to fetch L1 tip", "err", err)
		case !hasLast || tip != last:
			select {
			case out <- tip:
				f.log.Debug("new L1 tip", "block", tip)
				last, hasLast = tip, true
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
