// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mmr

import "math/bits"

// Positions are zero based indices into the post order traversal of the
// mountain range, which is also the order nodes are appended in:
//
//	2        6
//	       /   \
//	1     2     5      9
//	     / \   / \    / \
//	0   0   1 3   4  7   8 10
//
// Leaves are numbered separately, counting only height 0 nodes.

// Size returns the number of nodes in a mountain range holding [leaves] leaves.
func Size(leaves uint64) uint64 {
	return 2*leaves - uint64(bits.OnesCount64(leaves))
}

// LeafPosition returns the position of the leaf with index [leafIndex]. It is
// also the size of the mountain range before that leaf was appended.
func LeafPosition(leafIndex uint64) uint64 {
	sum := uint64(0)
	for leafIndex > 0 {
		h := bits.Len64(leafIndex)
		sum += (1 << h) - 1
		leafIndex -= uint64(1) << (h - 1)
	}
	return sum
}

// IndexHeight returns the height of the node at position [i]. Leaves have
// height 0.
func IndexHeight(i uint64) uint64 {
	// the encoding only works out for one based positions
	return posHeight(i + 1)
}

// posHeight jumps left by the largest perfect tree preceding [pos] until it
// lands on a left most node, whose one based position is all binary ones.
func posHeight(pos uint64) uint64 {
	for !allOnes(pos) {
		pos = jumpLeftPerfect(pos)
	}
	return uint64(bits.Len64(pos)) - 1
}

func jumpLeftPerfect(pos uint64) uint64 {
	msb := uint64(1) << (bits.Len64(pos) - 1)
	return pos - (msb - 1)
}

func allOnes(num uint64) bool {
	return (1<<bits.OnesCount64(num))-1 == num
}

// PeakPositions returns the positions of the peaks of a mountain range with
// [leaves] leaves. There is one peak per set bit of [leaves] and the tallest,
// left most, peak comes first.
func PeakPositions(leaves uint64) []uint64 {
	if leaves == 0 {
		return nil
	}
	peaks := make([]uint64, 0, bits.OnesCount64(leaves))
	end := uint64(0)
	for h := bits.Len64(leaves) - 1; h >= 0; h-- {
		if leaves&(uint64(1)<<h) == 0 {
			continue
		}
		end += (uint64(2) << h) - 1
		peaks = append(peaks, end-1)
	}
	return peaks
}

// peakFor locates the mountain committing [leafIndex]. It returns the index of
// that mountain's peak in the PeakPositions ordering and the mountain height.
func peakFor(leaves uint64, leafIndex uint64) (int, int, bool) {
	if leafIndex >= leaves {
		return 0, 0, false
	}
	first := uint64(0)
	peak := 0
	for h := bits.Len64(leaves) - 1; h >= 0; h-- {
		span := uint64(1) << h
		if leaves&span == 0 {
			continue
		}
		if leafIndex < first+span {
			return peak, h, true
		}
		first += span
		peak++
	}
	return 0, 0, false
}

// inclusionPath returns the positions of the witness nodes proving the node at
// position [i] in a mountain range whose last position is [last]. The path
// ends at the peak committing [i].
func inclusionPath(last uint64, i uint64) []uint64 {
	var path []uint64
	g := IndexHeight(i)
	for {
		siblingOffset := uint64(2) << g

		var sibling uint64
		// if the next position is higher, i is a right child and its parent
		// is stored immediately after it
		if IndexHeight(i+1) > g {
			sibling = i + 1 - siblingOffset
			i++
		} else {
			sibling = i + siblingOffset - 1
			i += siblingOffset
		}

		if sibling > last {
			return path
		}
		path = append(path, sibling)
		g++
	}
}
