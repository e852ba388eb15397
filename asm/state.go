// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"

	"github.com/ava-labs/anchorvm/mmr"
)

const manifestAccumulatorName = "manifests"

var (
	// These are prefixes for db keys.
	// It's important to set different prefixes for each separate database objects.
	singletonStatePrefix = []byte("singleton")
	anchorStatePrefix    = []byte("anchor")
	manifestStatePrefix  = []byte("manifest")
	auxStatePrefix       = []byte("aux")
	mmrStatePrefix       = []byte("mmr")

	_ State = &state{}
)

// State is the AnchorStateStore kept in a versioned database, together with
// the manifest accumulator living in the same database. Nothing written
// through any of them reaches the underlying database before Commit.
type State interface {
	AnchorStateStore

	Accumulator() ManifestAccumulatorStore
}

type state struct {
	InitializedState
	AnchorState
	ManifestState

	accumulator *mmr.Accumulator
	baseDB      *versiondb.Database
}

func NewState(db database.Database) State {
	baseDB := versiondb.New(db)

	singletonDB := prefixdb.New(singletonStatePrefix, baseDB)
	anchorDB := prefixdb.New(anchorStatePrefix, baseDB)
	manifestDB := prefixdb.New(manifestStatePrefix, baseDB)
	auxDB := prefixdb.New(auxStatePrefix, baseDB)
	mmrDB := prefixdb.New(mmrStatePrefix, baseDB)

	return &state{
		InitializedState: NewInitializedState(singletonDB),
		AnchorState:      NewAnchorState(anchorDB),
		ManifestState:    NewManifestState(manifestDB, auxDB),
		accumulator:      mmr.New(manifestAccumulatorName, mmrDB),
		baseDB:           baseDB,
	}
}

func (s *state) Accumulator() ManifestAccumulatorStore {
	return s.accumulator
}

// Commit commits pending operations to the underlying database
func (s *state) Commit() error {
	return s.baseDB.Commit()
}

// Abort drops every uncommitted write
func (s *state) Abort() {
	s.baseDB.Abort()
	s.AnchorState.ClearCache()
}

// Close closes the versioned database
func (s *state) Close() error {
	return s.baseDB.Close()
}
