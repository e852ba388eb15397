// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"context"
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// swappingSource answers every request with the same block.
type swappingSource struct{ block *wire.MsgBlock }

func (s *swappingSource) GetBlock(context.Context, chainhash.Hash) (*wire.MsgBlock, error) {
	return s.block, nil
}

func TestResolveAnchoredTarget(t *testing.T) {
	require := require.New(t)
	chain := newTestChain(100, 8)
	s := newAnchoredState(t, chain, 100)
	resolver := NewPivotResolver(s, chain, 100)

	result, err := resolver.Resolve(context.Background(), chain.commitment(100))
	require.NoError(err)
	require.Equal(chain.commitment(100), result.Pivot)
	require.Equal(chain.commitment(100), result.PivotState.Anchor)
	require.Empty(result.Skipped)
}

func TestResolveGap(t *testing.T) {
	require := require.New(t)
	chain := newTestChain(100, 8)
	s := newAnchoredState(t, chain, 100)
	resolver := NewPivotResolver(s, chain, 100)

	result, err := resolver.Resolve(context.Background(), chain.commitment(105))
	require.NoError(err)
	require.Equal(chain.commitment(100), result.Pivot)
	require.Len(result.Skipped, 5)
	for i, skipped := range result.Skipped {
		height := uint64(101 + i)
		require.Equal(chain.commitment(height), skipped.Commitment)
		require.Equal(chain.block(height), skipped.Block)
	}
}

func TestResolveStopsAtClosestAnchor(t *testing.T) {
	require := require.New(t)
	chain := newTestChain(100, 8)
	s := newAnchoredState(t, chain, 100)
	c := chain.commitment(103)
	require.NoError(s.PutAnchor(c, NewGenesisState(c)))
	resolver := NewPivotResolver(s, chain, 100)

	result, err := resolver.Resolve(context.Background(), chain.commitment(107))
	require.NoError(err)
	require.Equal(c, result.Pivot)
	require.Len(result.Skipped, 4)
	require.Equal(chain.commitment(104), result.Skipped[0].Commitment)
	require.Equal(chain.commitment(107), result.Skipped[3].Commitment)
}

func TestResolveBelowGenesis(t *testing.T) {
	require := require.New(t)
	chain := newTestChain(98, 4)
	s := newAnchoredState(t, chain, 100)
	resolver := NewPivotResolver(s, chain, 100)

	_, err := resolver.Resolve(context.Background(), chain.commitment(99))
	require.ErrorIs(err, ErrBelowGenesis)
	require.False(IsFatal(err))
}

func TestResolveMissingAncestor(t *testing.T) {
	require := require.New(t)
	chain := newTestChain(100, 8)
	s := newAnchoredState(t, chain, 100)
	chain.drop(103)
	resolver := NewPivotResolver(s, chain, 100)

	_, err := resolver.Resolve(context.Background(), chain.commitment(105))
	require.ErrorIs(err, ErrMissingL1Block)
	require.ErrorIs(err, errUnknownBlock)
	require.True(IsFatal(err))
}

func TestResolveCanceled(t *testing.T) {
	require := require.New(t)
	chain := newTestChain(100, 3)
	s := newAnchoredState(t, chain, 100)
	resolver := NewPivotResolver(s, chain, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := resolver.Resolve(ctx, chain.commitment(102))
	require.ErrorIs(err, ErrMissingL1Block)
	require.ErrorIs(err, context.Canceled)
}

func TestResolveWithoutAnchor(t *testing.T) {
	require := require.New(t)
	chain := newTestChain(100, 4)
	resolver := NewPivotResolver(NewState(memdb.New()), chain, 100)

	_, err := resolver.Resolve(context.Background(), chain.commitment(103))
	require.ErrorIs(err, ErrPivotBelowGenesis)
	require.True(IsFatal(err))
}

func TestResolveGenesisAtZero(t *testing.T) {
	require := require.New(t)
	chain := newTestChain(0, 4)

	resolver := NewPivotResolver(NewState(memdb.New()), chain, 0)
	_, err := resolver.Resolve(context.Background(), chain.commitment(3))
	require.ErrorIs(err, ErrPivotBelowGenesis)

	s := newAnchoredState(t, chain, 0)
	resolver = NewPivotResolver(s, chain, 0)
	result, err := resolver.Resolve(context.Background(), chain.commitment(3))
	require.NoError(err)
	require.Equal(chain.commitment(0), result.Pivot)
	require.Len(result.Skipped, 3)
}

func TestResolveRejectsWrongBlock(t *testing.T) {
	require := require.New(t)
	chain := newTestChain(100, 4)
	s := newAnchoredState(t, chain, 100)
	resolver := NewPivotResolver(s, &swappingSource{block: chain.block(101)}, 100)

	_, err := resolver.Resolve(context.Background(), chain.commitment(103))
	require.ErrorIs(err, ErrL1BlockMismatch)
	require.True(IsFatal(err))
}
