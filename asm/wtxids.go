// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// WtxidsRoot returns the witness merkle root of [block] if any of its
// transactions carries witness data, and the plain merkle root otherwise.
// A block without transactions has the zero root.
func WtxidsRoot(block *wire.MsgBlock) chainhash.Hash {
	if len(block.Transactions) == 0 {
		return chainhash.Hash{}
	}

	witness := false
	txs := make([]*btcutil.Tx, len(block.Transactions))
	for i, tx := range block.Transactions {
		witness = witness || tx.HasWitness()
		txs[i] = btcutil.NewTx(tx)
	}

	merkles := blockchain.BuildMerkleTreeStore(txs, witness)
	return *merkles[len(merkles)-1]
}
