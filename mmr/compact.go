// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mmr

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/fxamacker/cbor/v2"
)

// CapLog2 is log2 of the leaf capacity of a compact accumulator. With 64 bit
// leaf counts a range can never hold more than 64 mountains.
const CapLog2 = 64

var (
	errBadCompactRoots = errors.New("compact accumulator root count does not match its entries")
	errBadRootLength   = errors.New("compact accumulator root has the wrong length")

	cborEncMode cbor.EncMode
)

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// CompactMmr is the peaks only summary of an accumulator. It is enough to
// verify inclusion proofs for any of its entries.
type CompactMmr struct {
	Entries uint64   `serialize:"true" json:"entries"`
	CapLog2 uint8    `serialize:"true" json:"capLog2"`
	Roots   []ids.ID `serialize:"true" json:"roots"`
}

// compactCBOR is the integer keyed wire form used for cross-domain
// commitments.
type compactCBOR struct {
	Entries uint64   `cbor:"1,keyasint"`
	CapLog2 uint8    `cbor:"2,keyasint"`
	Roots   [][]byte `cbor:"3,keyasint"`
}

// VerifyProof returns true iff [proof] commits [leafHash] into [c].
func (c *CompactMmr) VerifyProof(leafHash ids.ID, proof *MerkleProof) bool {
	return VerifyProof(c.Roots, c.Entries, leafHash, proof)
}

// MarshalCBOR returns the deterministic CBOR encoding of [c].
func (c *CompactMmr) MarshalCBOR() ([]byte, error) {
	w := compactCBOR{
		Entries: c.Entries,
		CapLog2: c.CapLog2,
		Roots:   make([][]byte, len(c.Roots)),
	}
	for i := range c.Roots {
		root := c.Roots[i]
		w.Roots[i] = root[:]
	}
	return cborEncMode.Marshal(&w)
}

// UnmarshalCompact decodes a CBOR encoded compact accumulator.
func UnmarshalCompact(b []byte) (*CompactMmr, error) {
	var w compactCBOR
	if err := cbor.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("failed to decode compact accumulator: %w", err)
	}
	if len(w.Roots) != len(PeakPositions(w.Entries)) {
		return nil, errBadCompactRoots
	}
	c := &CompactMmr{
		Entries: w.Entries,
		CapLog2: w.CapLog2,
		Roots:   make([]ids.ID, len(w.Roots)),
	}
	for i, root := range w.Roots {
		id, err := ids.ToID(root)
		if err != nil {
			return nil, fmt.Errorf("%w: %d bytes", errBadRootLength, len(root))
		}
		c.Roots[i] = id
	}
	return c, nil
}
