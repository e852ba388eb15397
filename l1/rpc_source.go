// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package l1

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/anchorvm/asm"
)

var (
	_ asm.L1BlockSource = &RPCSource{}
	_ TipSource         = &RPCSource{}
	_ RPCClient         = &rpcclient.Client{}
)

// RPCClient is the part of a bitcoind style JSON-RPC client the node uses.
type RPCClient interface {
	GetBlock(blockHash *chainhash.Hash) (*wire.MsgBlock, error)
	GetBlockCount() (int64, error)
	GetBlockHash(blockHeight int64) (*chainhash.Hash, error)
}

// RPCConfig ...
type RPCConfig struct {
	Host string
	User string
	Pass string

	// Retries is the number of extra attempts after a failed call.
	Retries       int
	RetryInterval time.Duration
}

// DialRPC returns a client posting requests to the node at config.Host.
func DialRPC(config RPCConfig) (*rpcclient.Client, error) {
	return rpcclient.New(&rpcclient.ConnConfig{
		Host:         config.Host,
		User:         config.User,
		Pass:         config.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
}

// RPCSource reads blocks from a base chain node, retrying failed calls.
type RPCSource struct {
	client        RPCClient
	retries       int
	retryInterval time.Duration
	log           log.Logger
}

func NewRPCSource(client RPCClient, config RPCConfig, logger log.Logger) *RPCSource {
	return &RPCSource{
		client:        client,
		retries:       config.Retries,
		retryInterval: config.RetryInterval,
		log:           logger,
	}
}

func (s *RPCSource) GetBlock(ctx context.Context, blockID chainhash.Hash) (*wire.MsgBlock, error) {
	var block *wire.MsgBlock
	err := s.retry(ctx, "getblock", func() error {
		var err error
		block, err = s.client.GetBlock(&blockID)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrBlockNotFound, blockID, err)
	}
	return block, nil
}

// Tip returns the commitment to the best block of the node.
func (s *RPCSource) Tip(ctx context.Context) (asm.L1BlockCommitment, error) {
	var (
		height int64
		hash   *chainhash.Hash
	)
	err := s.retry(ctx, "getblockcount", func() error {
		var err error
		height, err = s.client.GetBlockCount()
		return err
	})
	if err != nil {
		return asm.L1BlockCommitment{}, err
	}
	err = s.retry(ctx, "getblockhash", func() error {
		var err error
		hash, err = s.client.GetBlockHash(height)
		return err
	})
	if err != nil {
		return asm.L1BlockCommitment{}, err
	}
	return asm.NewL1BlockCommitment(uint64(height), *hash), nil
}

func (s *RPCSource) retry(ctx context.Context, method string, call func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = call(); err == nil {
			return nil
		}
		if attempt >= s.retries {
			return err
		}

		s.log.Warn("L1 rpc call failed, retrying",
			"method", method,
			"attempt", attempt+1,
			"err", err,
		)
		timer := time.NewTimer(s.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
