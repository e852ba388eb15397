// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/ava-labs/anchorvm/mmr"
)

var _ ManifestAccumulatorStore = &mmr.Accumulator{}

// Stf computes the state that follows [state] once [block] is applied.
// Implementations must not modify [state].
type Stf interface {
	Transition(state *AsmState, block *wire.MsgBlock) (*AsmState, *AuxData, error)
}

// L1BlockSource fetches full base chain blocks by id.
type L1BlockSource interface {
	GetBlock(ctx context.Context, blockID chainhash.Hash) (*wire.MsgBlock, error)
}

// AnchorStateStore is the persistence the anchor state machine needs.
// Writes become durable only on Commit; Abort drops them.
type AnchorStateStore interface {
	InitializedState
	AnchorState
	ManifestState

	Commit() error
	Abort()
	Close() error
}

// ManifestAccumulatorStore is the append-only accumulator of manifest hashes.
type ManifestAccumulatorStore interface {
	AppendLeaf(leaf ids.ID) (uint64, error)
	PopLeaf() (ids.ID, bool, error)
	GetNode(pos uint64) (ids.ID, error)
	NumLeaves() (uint64, error)
	MMRSize() (uint64, error)
	PeakRoots() ([]ids.ID, error)
	GenerateProof(leafIndex uint64) (*mmr.MerkleProof, error)
	ToCompact() (*mmr.CompactMmr, error)
}
