// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mmr

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

var (
	ErrNodeNotFound   = errors.New("mmr node not found")
	ErrLeafOutOfRange = errors.New("leaf index out of range")
	ErrInvalidRange   = errors.New("invalid leaf range")
	errBadLeafCount   = errors.New("malformed leaf count")

	nodePrefix = []byte("node")
	leavesKey  = []byte("leaves")
)

// Accumulator is a named Merkle Mountain Range persisted in a database. Every
// node lives at its natural position, so a leaf is always written at the
// current size and the interior nodes it completes directly follow it.
//
// The leaf count is read from the database on every call, which keeps the
// accumulator consistent with the database when the caller aborts
// uncommitted writes.
type Accumulator struct {
	name   string
	metaDB database.Database
	nodeDB database.Database
}

// New returns the accumulator called [name] stored in [db].
func New(name string, db database.Database) *Accumulator {
	metaDB := prefixdb.New([]byte(name), db)
	return &Accumulator{
		name:   name,
		metaDB: metaDB,
		nodeDB: prefixdb.New(nodePrefix, metaDB),
	}
}

// Name returns the name of this accumulator instance
func (a *Accumulator) Name() string { return a.name }

// NumLeaves returns the number of appended leaves.
func (a *Accumulator) NumLeaves() (uint64, error) {
	b, err := a.metaDB.Get(leavesKey)
	switch {
	case err == database.ErrNotFound:
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("failed to read leaf count of %s: %w", a.name, err)
	case len(b) != wrappers.LongLen:
		return 0, errBadLeafCount
	}
	return binary.BigEndian.Uint64(b), nil
}

// MMRSize returns the number of nodes, 2*leaves - popcount(leaves).
func (a *Accumulator) MMRSize() (uint64, error) {
	leaves, err := a.NumLeaves()
	if err != nil {
		return 0, err
	}
	return Size(leaves), nil
}

// AppendLeaf adds [leaf] and back fills the interior nodes it completes.
// It returns the index of the new leaf.
func (a *Accumulator) AppendLeaf(leaf ids.ID) (uint64, error) {
	leaves, err := a.NumLeaves()
	if err != nil {
		return 0, err
	}

	i := Size(leaves)
	if err := a.putNode(i, leaf); err != nil {
		return 0, err
	}

	// As long as the next position is higher than the node just written, that
	// node was a right child and its parent is the next node to append.
	node := leaf
	height := uint64(0)
	for IndexHeight(i+1) > height {
		left, err := a.GetNode(i + 1 - (2 << height))
		if err != nil {
			return 0, err
		}
		node = HashNodes(left, node)
		i++
		if err := a.putNode(i, node); err != nil {
			return 0, err
		}
		height++
	}

	if err := a.putLeaves(leaves + 1); err != nil {
		return 0, err
	}
	return leaves, nil
}

// PopLeaf removes the most recently appended leaf together with the interior
// nodes its append created. It returns false if the accumulator is empty.
func (a *Accumulator) PopLeaf() (ids.ID, bool, error) {
	leaves, err := a.NumLeaves()
	if err != nil {
		return ids.Empty, false, err
	}
	if leaves == 0 {
		return ids.Empty, false, nil
	}

	pos := LeafPosition(leaves - 1)
	leaf, err := a.GetNode(pos)
	if err != nil {
		return ids.Empty, false, err
	}
	for i, size := pos, Size(leaves); i < size; i++ {
		if err := a.nodeDB.Delete(positionKey(i)); err != nil {
			return ids.Empty, false, fmt.Errorf("failed to delete node %d of %s: %w", i, a.name, err)
		}
	}
	if err := a.putLeaves(leaves - 1); err != nil {
		return ids.Empty, false, err
	}
	return leaf, true, nil
}

// GetNode returns the node at position [pos].
func (a *Accumulator) GetNode(pos uint64) (ids.ID, error) {
	b, err := a.nodeDB.Get(positionKey(pos))
	switch {
	case err == database.ErrNotFound:
		return ids.Empty, fmt.Errorf("%w: %s position %d", ErrNodeNotFound, a.name, pos)
	case err != nil:
		return ids.Empty, fmt.Errorf("failed to read node %d of %s: %w", pos, a.name, err)
	}
	return ids.ToID(b)
}

// PeakRoots returns one root per mountain, tallest first.
func (a *Accumulator) PeakRoots() ([]ids.ID, error) {
	leaves, err := a.NumLeaves()
	if err != nil {
		return nil, err
	}
	return a.peaks(leaves, a.GetNode)
}

// GenerateProof returns the inclusion proof for leaf [leafIndex] against the
// current peaks.
func (a *Accumulator) GenerateProof(leafIndex uint64) (*MerkleProof, error) {
	leaves, err := a.NumLeaves()
	if err != nil {
		return nil, err
	}
	if leafIndex >= leaves {
		return nil, fmt.Errorf("%w: %d >= %d", ErrLeafOutOfRange, leafIndex, leaves)
	}
	return a.proof(leaves, leafIndex, a.GetNode)
}

// GenerateProofs returns the proofs for leaves [start, end). Nodes shared by
// several paths are read once.
func (a *Accumulator) GenerateProofs(start, end uint64) ([]*MerkleProof, error) {
	leaves, err := a.NumLeaves()
	if err != nil {
		return nil, err
	}
	if start > end || end > leaves {
		return nil, fmt.Errorf("%w: [%d, %d) with %d leaves", ErrInvalidRange, start, end, leaves)
	}

	seen := make(map[uint64]ids.ID)
	getNode := func(pos uint64) (ids.ID, error) {
		if node, ok := seen[pos]; ok {
			return node, nil
		}
		node, err := a.GetNode(pos)
		if err != nil {
			return ids.Empty, err
		}
		seen[pos] = node
		return node, nil
	}

	proofs := make([]*MerkleProof, 0, end-start)
	for leafIndex := start; leafIndex < end; leafIndex++ {
		proof, err := a.proof(leaves, leafIndex, getNode)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, proof)
	}
	return proofs, nil
}

// ToCompact returns the peaks only summary of the accumulator.
func (a *Accumulator) ToCompact() (*CompactMmr, error) {
	leaves, err := a.NumLeaves()
	if err != nil {
		return nil, err
	}
	roots, err := a.peaks(leaves, a.GetNode)
	if err != nil {
		return nil, err
	}
	return &CompactMmr{
		Entries: leaves,
		CapLog2: CapLog2,
		Roots:   roots,
	}, nil
}

func (a *Accumulator) peaks(leaves uint64, getNode func(uint64) (ids.ID, error)) ([]ids.ID, error) {
	positions := PeakPositions(leaves)
	roots := make([]ids.ID, 0, len(positions))
	for _, pos := range positions {
		root, err := getNode(pos)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	return roots, nil
}

func (a *Accumulator) proof(leaves, leafIndex uint64, getNode func(uint64) (ids.ID, error)) (*MerkleProof, error) {
	path := inclusionPath(Size(leaves)-1, LeafPosition(leafIndex))
	proof := &MerkleProof{
		LeafIndex: leafIndex,
		Cohashes:  make([]ids.ID, 0, len(path)),
	}
	for _, pos := range path {
		node, err := getNode(pos)
		if err != nil {
			return nil, err
		}
		proof.Cohashes = append(proof.Cohashes, node)
	}
	return proof, nil
}

func (a *Accumulator) putNode(pos uint64, node ids.ID) error {
	if err := a.nodeDB.Put(positionKey(pos), node[:]); err != nil {
		return fmt.Errorf("failed to write node %d of %s: %w", pos, a.name, err)
	}
	return nil
}

func (a *Accumulator) putLeaves(leaves uint64) error {
	b := make([]byte, wrappers.LongLen)
	binary.BigEndian.PutUint64(b, leaves)
	if err := a.metaDB.Put(leavesKey, b); err != nil {
		return fmt.Errorf("failed to write leaf count of %s: %w", a.name, err)
	}
	return nil
}

func positionKey(pos uint64) []byte {
	b := make([]byte, wrappers.LongLen)
	binary.BigEndian.PutUint64(b, pos)
	return b
}
