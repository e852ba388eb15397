// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
)

const (
	anchorCacheSize = 1024
)

var _ AnchorState = &anchorState{}

// AnchorState stores the AsmState reached after each processed L1 block.
type AnchorState interface {
	// GetAnchor returns database.ErrNotFound if no state is stored for [c].
	GetAnchor(c L1BlockCommitment) (*AsmState, error)
	HasAnchor(c L1BlockCommitment) (bool, error)
	PutAnchor(c L1BlockCommitment, s *AsmState) error

	ClearCache()
}

type anchorState struct {
	anchorCache cache.Cacher
	anchorDB    database.Database
}

func NewAnchorState(db database.Database) AnchorState {
	return &anchorState{
		anchorCache: &cache.LRU{Size: anchorCacheSize},
		anchorDB:    db,
	}
}

func (s *anchorState) GetAnchor(c L1BlockCommitment) (*AsmState, error) {
	if stateIntf, ok := s.anchorCache.Get(c); ok {
		return stateIntf.(*AsmState).Clone(), nil
	}

	stateBytes, err := s.anchorDB.Get(c.Key())
	if err != nil {
		return nil, err
	}

	state := &AsmState{}
	if err := parse(stateBytes, state, "anchor state"); err != nil {
		return nil, err
	}

	s.anchorCache.Put(c, state)
	return state.Clone(), nil
}

func (s *anchorState) HasAnchor(c L1BlockCommitment) (bool, error) {
	if _, ok := s.anchorCache.Get(c); ok {
		return true, nil
	}
	return s.anchorDB.Has(c.Key())
}

func (s *anchorState) PutAnchor(c L1BlockCommitment, state *AsmState) error {
	bytes, err := Codec.Marshal(CodecVersion, state)
	if err != nil {
		return err
	}
	if err := s.anchorDB.Put(c.Key(), bytes); err != nil {
		return err
	}
	s.anchorCache.Put(c, state.Clone())
	return nil
}

func (s *anchorState) ClearCache() {
	s.anchorCache.Flush()
}
