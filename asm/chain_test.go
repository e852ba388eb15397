// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var (
	errUnknownBlock = errors.New("unknown block")
	errTestStf      = errors.New("test stf failure")
)

// testChain is a linear chain of base chain blocks starting at [first].
type testChain struct {
	first  uint64
	blocks []*wire.MsgBlock
	byID   map[chainhash.Hash]*wire.MsgBlock
}

func newTestChain(first uint64, n int) *testChain {
	c := &testChain{
		first: first,
		byID:  make(map[chainhash.Hash]*wire.MsgBlock),
	}
	prev := chainhash.Hash{}
	for i := 0; i < n; i++ {
		block := newTestBlock(first+uint64(i), prev)
		c.blocks = append(c.blocks, block)
		c.byID[block.BlockHash()] = block
		prev = block.BlockHash()
	}
	return c
}

func newTestBlock(height uint64, prev chainhash.Hash) *wire.MsgBlock {
	heightBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBytes, height)

	coinbase := wire.NewMsgTx(wire.TxVersion)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: math.MaxUint32},
		SignatureScript:  heightBytes,
		Sequence:         math.MaxUint32,
	})
	coinbase.AddTxOut(wire.NewTxOut(50, []byte{txscript.OP_TRUE}))

	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: prev,
			Timestamp: time.Unix(int64(1600000000+height), 0),
			Bits:      0x207fffff,
		},
		Transactions: []*wire.MsgTx{coinbase},
	}
	block.Header.MerkleRoot = coinbase.TxHash()
	return block
}

func (c *testChain) block(height uint64) *wire.MsgBlock {
	return c.blocks[height-c.first]
}

func (c *testChain) commitment(height uint64) L1BlockCommitment {
	return NewL1BlockCommitment(height, c.block(height).BlockHash())
}

func (c *testChain) GetBlock(ctx context.Context, blockID chainhash.Hash) (*wire.MsgBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	block, ok := c.byID[blockID]
	if !ok {
		return nil, errUnknownBlock
	}
	return block, nil
}

// drop forgets the block at [height].
func (c *testChain) drop(height uint64) {
	delete(c.byID, c.block(height).BlockHash())
}

// testStf emits one log per block and counts blocks in section 0.
type testStf struct {
	failAt map[chainhash.Hash]bool
}

func (s *testStf) Transition(state *AsmState, block *wire.MsgBlock) (*AsmState, *AuxData, error) {
	blockID := block.BlockHash()
	if s.failAt[blockID] {
		return nil, nil, errTestStf
	}
	if block.Header.PrevBlock != state.Anchor.BlockID {
		return nil, nil, errors.New("not a child of the anchor")
	}

	newState := state.Clone()
	newState.Anchor = NewL1BlockCommitment(state.Anchor.Height+1, blockID)

	count := make([]byte, 8)
	if section, ok := state.Section(0); ok {
		binary.BigEndian.PutUint64(count, binary.BigEndian.Uint64(section.Data)+1)
	} else {
		binary.BigEndian.PutUint64(count, 1)
	}
	newState.SetSection(SectionState{ID: 0, Data: count})
	newState.Logs = []LogEntry{{Subprotocol: 0, Kind: 1, Payload: blockID[:]}}

	aux := &AuxData{Entries: []AuxEntry{{Subprotocol: 0, Data: count}}}
	return newState, aux, nil
}

func testLogger() log.Logger {
	logger := log.New()
	logger.SetHandler(log.DiscardHandler())
	return logger
}

// newAnchoredState returns a state with the genesis anchor of [chain]
// committed at [genesisHeight].
func newAnchoredState(t *testing.T, chain *testChain, genesisHeight uint64) State {
	s := NewState(memdb.New())
	genesis := chain.commitment(genesisHeight)
	require.NoError(t, s.PutAnchor(genesis, NewGenesisState(genesis)))
	require.NoError(t, s.SetLatestAnchor(genesis))
	require.NoError(t, s.Commit())
	return s
}

func newTestWorker(t *testing.T, s State, chain *testChain, stf Stf, genesisHeight uint64) *Worker {
	w, err := NewWorker(
		Config{Genesis: chain.commitment(genesisHeight)},
		s,
		chain,
		stf,
		prometheus.NewRegistry(),
		testLogger(),
	)
	require.NoError(t, err)
	return w
}

func stateBytes(t *testing.T, s *AsmState) []byte {
	b, err := Codec.Marshal(CodecVersion, s)
	require.NoError(t, err)
	return b
}
