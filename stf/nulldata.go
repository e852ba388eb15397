// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"bytes"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// taggedPayloads returns, in block order, the data carried by every OP_RETURN
// output that starts with [tag], with the tag removed.
func taggedPayloads(block *wire.MsgBlock, tag []byte) [][]byte {
	var payloads [][]byte
	for _, tx := range block.Transactions {
		for _, out := range tx.TxOut {
			if txscript.GetScriptClass(out.PkScript) != txscript.NullDataTy {
				continue
			}
			pushes, err := txscript.PushedData(out.PkScript)
			if err != nil || len(pushes) == 0 {
				continue
			}
			data := bytes.Join(pushes, nil)
			if !bytes.HasPrefix(data, tag) {
				continue
			}
			payloads = append(payloads, data[len(tag):])
		}
	}
	return payloads
}
