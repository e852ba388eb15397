// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package l1

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/ava-labs/anchorvm/asm"
)

var (
	ErrBlockNotFound = errors.New("L1 block not found")

	_ asm.L1BlockSource = &BlockStore{}
)

// BlockStore keeps serialized base chain blocks by id. Blocks it does not
// have are fetched from the fallback source, if any, and kept.
type BlockStore struct {
	db       database.Database
	fallback asm.L1BlockSource
}

func NewBlockStore(db database.Database, fallback asm.L1BlockSource) *BlockStore {
	return &BlockStore{
		db:       db,
		fallback: fallback,
	}
}

// PutBlock stores [block] under its hash
func (s *BlockStore) PutBlock(block *wire.MsgBlock) error {
	var buf bytes.Buffer
	if err := block.Serialize(&buf); err != nil {
		return err
	}
	blockID := block.BlockHash()
	return s.db.Put(blockID[:], buf.Bytes())
}

func (s *BlockStore) GetBlock(ctx context.Context, blockID chainhash.Hash) (*wire.MsgBlock, error) {
	b, err := s.db.Get(blockID[:])
	switch {
	case err == nil:
		block := &wire.MsgBlock{}
		if err := block.Deserialize(bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("failed to parse stored block %s: %w", blockID, err)
		}
		return block, nil
	case err != database.ErrNotFound:
		return nil, err
	case s.fallback == nil:
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, blockID)
	}

	block, err := s.fallback.GetBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	if err := s.PutBlock(block); err != nil {
		return nil, fmt.Errorf("failed to store block %s: %w", blockID, err)
	}
	return block, nil
}
