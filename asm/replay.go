// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"fmt"

	log "github.com/inconshreveable/log15"
)

// ReplayEngine applies blocks on top of an anchored state, one durable commit
// per block.
type ReplayEngine struct {
	store         AnchorStateStore
	accumulator   ManifestAccumulatorStore
	stf           Stf
	genesisHeight uint64
	log           log.Logger
}

func NewReplayEngine(
	store AnchorStateStore,
	accumulator ManifestAccumulatorStore,
	stf Stf,
	genesisHeight uint64,
	logger log.Logger,
) *ReplayEngine {
	return &ReplayEngine{
		store:         store,
		accumulator:   accumulator,
		stf:           stf,
		genesisHeight: genesisHeight,
		log:           logger,
	}
}

// Replay runs the transition for every block of [skipped], oldest first,
// starting from [pivotState]. It returns the state after the last block.
//
// Blocks are committed one at a time. If a block fails, its writes are
// aborted, the blocks before it stay committed and the returned state is the
// last committed one.
func (r *ReplayEngine) Replay(pivotState *AsmState, skipped []SkippedBlock) (*AsmState, error) {
	working := pivotState
	for _, s := range skipped {
		newState, err := r.apply(working, s)
		if err != nil {
			r.store.Abort()
			return working, err
		}
		working = newState
	}
	return working, nil
}

func (r *ReplayEngine) apply(working *AsmState, s SkippedBlock) (*AsmState, error) {
	newState, aux, err := r.stf.Transition(working, s.Block)
	if err != nil {
		return nil, wrapCause(ErrStfFailed, err, "block %s", s.Commitment)
	}
	newState.Anchor = s.Commitment

	manifest := NewManifest(s.Commitment, WtxidsRoot(s.Block), newState.Logs)
	leaf, err := manifest.Hash()
	if err != nil {
		return nil, fmt.Errorf("failed to hash manifest of %s: %w", s.Commitment, err)
	}
	leafIndex, err := r.accumulator.AppendLeaf(leaf)
	if err != nil {
		return nil, fmt.Errorf("failed to append manifest of %s: %w", s.Commitment, err)
	}
	if s.Commitment.Height <= r.genesisHeight || leafIndex != s.Commitment.Height-r.genesisHeight-1 {
		return nil, fmt.Errorf("%w: leaf %d for %s with genesis height %d",
			ErrLeafIndexMismatch, leafIndex, s.Commitment, r.genesisHeight)
	}

	compact, err := r.accumulator.ToCompact()
	if err != nil {
		return nil, fmt.Errorf("failed to read accumulator peaks: %w", err)
	}
	newState.Accumulator = ViewOf(compact)

	if err := r.store.PutManifest(manifest); err != nil {
		return nil, fmt.Errorf("failed to store manifest of %s: %w", s.Commitment, err)
	}
	if err := r.store.PutAuxData(s.Commitment, aux); err != nil {
		return nil, fmt.Errorf("failed to store aux data of %s: %w", s.Commitment, err)
	}
	if err := r.store.PutAnchor(s.Commitment, newState); err != nil {
		return nil, fmt.Errorf("failed to store anchor %s: %w", s.Commitment, err)
	}
	if err := r.store.SetLatestAnchor(s.Commitment); err != nil {
		return nil, fmt.Errorf("failed to move latest anchor to %s: %w", s.Commitment, err)
	}
	if err := r.store.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s: %w", s.Commitment, err)
	}

	r.log.Debug("replayed block",
		"block", s.Commitment,
		"leaf", leafIndex,
		"logs", len(newState.Logs),
	)
	return newState, nil
}
