// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package l1

import (
	"context"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/cache/metercacher"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/anchorvm/asm"
)

const DefaultBlockCacheSize = 2048

var _ asm.L1BlockSource = &CachedSource{}

// CachedSource is an LRU cache of blocks in front of another source.
// Cached blocks are shared between callers and must not be modified.
type CachedSource struct {
	backend asm.L1BlockSource
	// blockID -> *wire.MsgBlock
	blocks cache.Cacher
}

func NewCachedSource(backend asm.L1BlockSource, size int, registerer prometheus.Registerer) (*CachedSource, error) {
	blocks, err := metercacher.New(
		"l1_block_cache",
		registerer,
		&cache.LRU{Size: size},
	)
	if err != nil {
		return nil, err
	}
	return &CachedSource{
		backend: backend,
		blocks:  blocks,
	}, nil
}

func (s *CachedSource) GetBlock(ctx context.Context, blockID chainhash.Hash) (*wire.MsgBlock, error) {
	if block, ok := s.blocks.Get(blockID); ok {
		return block.(*wire.MsgBlock), nil
	}
	block, err := s.backend.GetBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	s.blocks.Put(blockID, block)
	return block, nil
}

// Flush empties the cache
func (s *CachedSource) Flush() {
	s.blocks.Flush()
}
