// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mmr

import (
	"math/bits"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

// MerkleProof is the co-path from a leaf up to the peak of its mountain.
type MerkleProof struct {
	LeafIndex uint64   `serialize:"true" json:"leafIndex"`
	Cohashes  []ids.ID `serialize:"true" json:"cohashes"`
}

// HashNodes returns the parent of [left] and [right].
func HashNodes(left, right ids.ID) ids.ID {
	buf := make([]byte, 0, 2*hashing.HashLen)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return ids.ID(hashing.ComputeHash256Array(buf))
}

// IncludedRoot folds [leafHash] with [proof]'s cohashes and returns the peak
// they reproduce.
func IncludedRoot(leafHash ids.ID, proof *MerkleProof) ids.ID {
	pos := LeafPosition(proof.LeafIndex) + 1 // one based
	height := uint64(0)
	node := leafHash
	for _, cohash := range proof.Cohashes {
		if posHeight(pos+1) > height {
			// right child, the parent directly follows
			pos++
			node = HashNodes(cohash, node)
		} else {
			pos += 2 << height
			node = HashNodes(node, cohash)
		}
		height++
	}
	return node
}

// VerifyProof returns true iff [proof] shows [leafHash] is committed by the
// mountain range with [numLeaves] leaves and the given [peaks], tallest first.
func VerifyProof(peaks []ids.ID, numLeaves uint64, leafHash ids.ID, proof *MerkleProof) bool {
	if proof == nil || len(peaks) != bits.OnesCount64(numLeaves) {
		return false
	}
	peak, height, ok := peakFor(numLeaves, proof.LeafIndex)
	if !ok || len(proof.Cohashes) != height {
		return false
	}
	return IncludedRoot(leafHash, proof) == peaks[peak]
}
