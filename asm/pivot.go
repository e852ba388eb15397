// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"context"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/btcsuite/btcd/wire"
)

// SkippedBlock is a block between the pivot and the target that still has to
// be replayed.
type SkippedBlock struct {
	Block      *wire.MsgBlock
	Commitment L1BlockCommitment
}

// PivotResult is the closest anchored ancestor of a target block together
// with the blocks in (pivot, target], oldest first.
type PivotResult struct {
	Pivot      L1BlockCommitment
	PivotState *AsmState
	Skipped    []SkippedBlock
}

// PivotResolver finds the most recent anchored ancestor of a block by walking
// parent links backwards through the L1 block source.
type PivotResolver struct {
	anchors       AnchorState
	source        L1BlockSource
	genesisHeight uint64
}

func NewPivotResolver(anchors AnchorState, source L1BlockSource, genesisHeight uint64) *PivotResolver {
	return &PivotResolver{
		anchors:       anchors,
		source:        source,
		genesisHeight: genesisHeight,
	}
}

// Resolve returns ErrBelowGenesis for targets the state machine never
// processes. Every other error is fatal.
func (r *PivotResolver) Resolve(ctx context.Context, target L1BlockCommitment) (*PivotResult, error) {
	if target.Height < r.genesisHeight {
		return nil, fmt.Errorf("%w: %s, genesis height %d", ErrBelowGenesis, target, r.genesisHeight)
	}

	var (
		cursor  = target
		skipped []SkippedBlock
	)
	for {
		state, err := r.anchors.GetAnchor(cursor)
		switch {
		case err == nil:
			reverse(skipped)
			return &PivotResult{
				Pivot:      cursor,
				PivotState: state,
				Skipped:    skipped,
			}, nil
		case err != database.ErrNotFound:
			return nil, fmt.Errorf("failed to read anchor %s: %w", cursor, err)
		}

		// No anchored ancestor can exist below genesis.
		if cursor.Height == r.genesisHeight {
			return nil, fmt.Errorf("%w: walked back from %s", ErrPivotBelowGenesis, target)
		}

		block, err := r.source.GetBlock(ctx, cursor.BlockID)
		if err != nil {
			return nil, wrapCause(ErrMissingL1Block, err, "%s", cursor)
		}
		if blockID := block.BlockHash(); blockID != cursor.BlockID {
			return nil, fmt.Errorf("%w: %s returned block %s", ErrL1BlockMismatch, cursor, blockID)
		}

		skipped = append(skipped, SkippedBlock{Block: block, Commitment: cursor})
		cursor = NewL1BlockCommitment(cursor.Height-1, block.Header.PrevBlock)
	}
}

func reverse(blocks []SkippedBlock) {
	for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}
}
