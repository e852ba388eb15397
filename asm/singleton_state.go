// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"github.com/ava-labs/avalanchego/database"
)

const (
	IsInitializedKey byte = iota
	LatestAnchorKey
)

var (
	isInitializedKey                  = []byte{IsInitializedKey}
	latestAnchorKey                   = []byte{LatestAnchorKey}
	_                InitializedState = (*initializedState)(nil)
)

// InitializedState is a thin wrapper around a database to provide
// serialization and de-serialization of the initialization status and of the
// pointer to the most recent anchor.
type InitializedState interface {
	IsInitialized() (bool, error)
	SetInitialized() error

	// GetLatestAnchor returns database.ErrNotFound before the genesis anchor
	// is stored.
	GetLatestAnchor() (L1BlockCommitment, error)
	SetLatestAnchor(L1BlockCommitment) error
}

type initializedState struct {
	singletonDB database.Database
}

func NewInitializedState(db database.Database) InitializedState {
	return &initializedState{
		singletonDB: db,
	}
}

func (s *initializedState) IsInitialized() (bool, error) {
	return s.singletonDB.Has(isInitializedKey)
}

func (s *initializedState) SetInitialized() error {
	return s.singletonDB.Put(isInitializedKey, nil)
}

func (s *initializedState) GetLatestAnchor() (L1BlockCommitment, error) {
	key, err := s.singletonDB.Get(latestAnchorKey)
	if err != nil {
		return L1BlockCommitment{}, err
	}
	return commitmentFromKey(key)
}

func (s *initializedState) SetLatestAnchor(c L1BlockCommitment) error {
	return s.singletonDB.Put(latestAnchorKey, c.Key())
}
