// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"context"
	"fmt"

	log "github.com/inconshreveable/log15"
)

// GenesisBootstrapper writes the manifest of the genesis block. The genesis
// manifest is stored for lookups but is never an accumulator leaf, so leaf i
// always summarizes the block at genesis height + 1 + i.
type GenesisBootstrapper struct {
	store  AnchorStateStore
	source L1BlockSource
	log    log.Logger
}

func NewGenesisBootstrapper(store AnchorStateStore, source L1BlockSource, logger log.Logger) *GenesisBootstrapper {
	return &GenesisBootstrapper{
		store:  store,
		source: source,
		log:    logger,
	}
}

// Bootstrap stores and commits the genesis manifest unless it already exists.
// It reports whether a manifest was written.
func (g *GenesisBootstrapper) Bootstrap(ctx context.Context, genesis L1BlockCommitment) (bool, error) {
	exists, err := g.store.HasManifest(genesis.BlockID)
	if err != nil {
		return false, fmt.Errorf("failed to look up genesis manifest: %w", err)
	}
	if exists {
		return false, nil
	}

	block, err := g.source.GetBlock(ctx, genesis.BlockID)
	if err != nil {
		return false, wrapCause(ErrMissingL1Block, err, "genesis %s", genesis)
	}
	if blockID := block.BlockHash(); blockID != genesis.BlockID {
		return false, fmt.Errorf("%w: genesis %s returned block %s", ErrL1BlockMismatch, genesis, blockID)
	}

	manifest := NewManifest(genesis, WtxidsRoot(block), nil)
	if err := g.store.PutManifest(manifest); err != nil {
		g.store.Abort()
		return false, fmt.Errorf("failed to store genesis manifest: %w", err)
	}
	if err := g.store.Commit(); err != nil {
		g.store.Abort()
		return false, fmt.Errorf("failed to commit genesis manifest: %w", err)
	}

	g.log.Info("bootstrapped genesis manifest", "block", genesis)
	return true, nil
}
