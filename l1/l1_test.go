// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package l1

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/anchorvm/asm"
)

var errUnavailable = errors.New("unavailable")

func testLogger() log.Logger {
	logger := log.New()
	logger.SetHandler(log.DiscardHandler())
	return logger
}

func newTestBlock(nonce uint32, prev chainhash.Hash) *wire.MsgBlock {
	coinbase := wire.NewMsgTx(wire.TxVersion)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: math.MaxUint32},
		SignatureScript:  []byte{byte(nonce), 0},
		Sequence:         math.MaxUint32,
	})
	coinbase.AddTxOut(wire.NewTxOut(50, []byte{txscript.OP_TRUE}))
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: prev,
			Timestamp: time.Unix(1600000000, 0),
			Nonce:     nonce,
		},
		Transactions: []*wire.MsgTx{coinbase},
	}
	block.Header.MerkleRoot = coinbase.TxHash()
	return block
}

// fakeClient serves a fixed chain and fails the first [failures] calls.
type fakeClient struct {
	lock     sync.Mutex
	failures int
	calls    int
	blocks   []*wire.MsgBlock
}

func (c *fakeClient) fail() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.calls++
	if c.failures > 0 {
		c.failures--
		return true
	}
	return false
}

func (c *fakeClient) GetBlock(blockHash *chainhash.Hash) (*wire.MsgBlock, error) {
	if c.fail() {
		return nil, errUnavailable
	}
	for _, block := range c.blocks {
		if block.BlockHash() == *blockHash {
			return block, nil
		}
	}
	return nil, errors.New("no such block")
}

func (c *fakeClient) GetBlockCount() (int64, error) {
	if c.fail() {
		return 0, errUnavailable
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	return int64(len(c.blocks) - 1), nil
}

func (c *fakeClient) GetBlockHash(height int64) (*chainhash.Hash, error) {
	if c.fail() {
		return nil, errUnavailable
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	hash := c.blocks[height].BlockHash()
	return &hash, nil
}

func (c *fakeClient) extend() {
	c.lock.Lock()
	defer c.lock.Unlock()
	tip := c.blocks[len(c.blocks)-1]
	c.blocks = append(c.blocks, newTestBlock(uint32(len(c.blocks)), tip.BlockHash()))
}

func newFakeClient(n int) *fakeClient {
	c := &fakeClient{blocks: []*wire.MsgBlock{newTestBlock(0, chainhash.Hash{})}}
	for i := 1; i < n; i++ {
		c.extend()
	}
	return c
}

// countingSource counts the requests reaching it.
type countingSource struct {
	backend asm.L1BlockSource
	calls   int
}

func (s *countingSource) GetBlock(ctx context.Context, blockID chainhash.Hash) (*wire.MsgBlock, error) {
	s.calls++
	return s.backend.GetBlock(ctx, blockID)
}

func TestBlockStore(t *testing.T) {
	require := require.New(t)
	store := NewBlockStore(memdb.New(), nil)
	block := newTestBlock(1, chainhash.Hash{})

	_, err := store.GetBlock(context.Background(), block.BlockHash())
	require.ErrorIs(err, ErrBlockNotFound)

	require.NoError(store.PutBlock(block))
	got, err := store.GetBlock(context.Background(), block.BlockHash())
	require.NoError(err)
	require.Equal(block.BlockHash(), got.BlockHash())
	require.Equal(block.Transactions[0].TxHash(), got.Transactions[0].TxHash())
}

func TestBlockStoreFallback(t *testing.T) {
	require := require.New(t)
	backing := NewBlockStore(memdb.New(), nil)
	block := newTestBlock(2, chainhash.Hash{})
	require.NoError(backing.PutBlock(block))

	counting := &countingSource{backend: backing}
	store := NewBlockStore(memdb.New(), counting)

	for i := 0; i < 2; i++ {
		got, err := store.GetBlock(context.Background(), block.BlockHash())
		require.NoError(err)
		require.Equal(block.BlockHash(), got.BlockHash())
	}
	require.Equal(1, counting.calls)

	_, err := store.GetBlock(context.Background(), chainhash.Hash{9})
	require.ErrorIs(err, ErrBlockNotFound)
}

func TestCachedSource(t *testing.T) {
	require := require.New(t)
	backing := NewBlockStore(memdb.New(), nil)
	block := newTestBlock(3, chainhash.Hash{})
	require.NoError(backing.PutBlock(block))

	counting := &countingSource{backend: backing}
	registry := prometheus.NewRegistry()
	cached, err := NewCachedSource(counting, 4, registry)
	require.NoError(err)

	for i := 0; i < 3; i++ {
		got, err := cached.GetBlock(context.Background(), block.BlockHash())
		require.NoError(err)
		require.Equal(block.BlockHash(), got.BlockHash())
	}
	require.Equal(1, counting.calls)

	cached.Flush()
	_, err = cached.GetBlock(context.Background(), block.BlockHash())
	require.NoError(err)
	require.Equal(2, counting.calls)

	_, err = cached.GetBlock(context.Background(), chainhash.Hash{1})
	require.ErrorIs(err, ErrBlockNotFound)

	families, err := registry.Gather()
	require.NoError(err)
	require.NotEmpty(families)
}

func TestRPCSourceRetries(t *testing.T) {
	require := require.New(t)
	client := newFakeClient(3)
	client.failures = 2
	source := NewRPCSource(client, RPCConfig{Retries: 2, RetryInterval: time.Millisecond}, testLogger())

	want := client.blocks[1]
	got, err := source.GetBlock(context.Background(), want.BlockHash())
	require.NoError(err)
	require.Equal(want, got)
	require.Equal(3, client.calls)

	client.failures = 3
	_, err = source.GetBlock(context.Background(), want.BlockHash())
	require.ErrorIs(err, ErrBlockNotFound)
}

func TestRPCSourceStopsOnCancel(t *testing.T) {
	client := newFakeClient(1)
	client.failures = 10
	source := NewRPCSource(client, RPCConfig{Retries: 10, RetryInterval: time.Hour}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := source.GetBlock(ctx, client.blocks[0].BlockHash())
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrBlockNotFound)
	require.Equal(t, 1, client.calls)
}

func TestRPCSourceTip(t *testing.T) {
	require := require.New(t)
	client := newFakeClient(5)
	client.failures = 1
	source := NewRPCSource(client, RPCConfig{Retries: 1, RetryInterval: time.Millisecond}, testLogger())

	tip, err := source.Tip(context.Background())
	require.NoError(err)
	require.Equal(asm.NewL1BlockCommitment(4, client.blocks[4].BlockHash()), tip)
}

func TestFollowerEmitsNewTips(t *testing.T) {
	assert := assert.New(t)
	client := newFakeClient(2)
	source := NewRPCSource(client, RPCConfig{}, testLogger())
	follower := NewFollower(source, time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan asm.L1BlockCommitment)
	done := make(chan error, 1)
	go func() { done <- follower.Run(ctx, out) }()

	first := <-out
	assert.Equal(uint64(1), first.Height)

	client.extend()
	second := <-out
	assert.Equal(uint64(2), second.Height)
	assert.Equal(client.blocks[2].BlockHash(), second.BlockID)
	assert.Equal(client.blocks[1].BlockHash(), client.blocks[2].Header.PrevBlock)

	cancel()
	assert.ErrorIs(<-done, context.Canceled)
}
