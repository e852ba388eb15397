// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var _ ManifestState = &manifestState{}

// ManifestState stores manifests by the block id they summarize, and the aux
// data of each processed block by its commitment.
type ManifestState interface {
	GetManifest(blockID chainhash.Hash) (*AsmManifest, error)
	HasManifest(blockID chainhash.Hash) (bool, error)
	PutManifest(m *AsmManifest) error

	GetAuxData(c L1BlockCommitment) (*AuxData, error)
	PutAuxData(c L1BlockCommitment, aux *AuxData) error
}

type manifestState struct {
	manifestDB database.Database
	auxDB      database.Database
}

func NewManifestState(manifestDB, auxDB database.Database) ManifestState {
	return &manifestState{
		manifestDB: manifestDB,
		auxDB:      auxDB,
	}
}

func (s *manifestState) GetManifest(blockID chainhash.Hash) (*AsmManifest, error) {
	b, err := s.manifestDB.Get(blockID[:])
	if err != nil {
		return nil, err
	}
	m := &AsmManifest{}
	if err := parse(b, m, "manifest"); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *manifestState) HasManifest(blockID chainhash.Hash) (bool, error) {
	return s.manifestDB.Has(blockID[:])
}

func (s *manifestState) PutManifest(m *AsmManifest) error {
	b, err := m.Bytes()
	if err != nil {
		return err
	}
	return s.manifestDB.Put(m.BlockID[:], b)
}

func (s *manifestState) GetAuxData(c L1BlockCommitment) (*AuxData, error) {
	b, err := s.auxDB.Get(c.Key())
	if err != nil {
		return nil, err
	}
	aux := &AuxData{}
	if err := parse(b, aux, "aux data"); err != nil {
		return nil, err
	}
	return aux, nil
}

func (s *manifestState) PutAuxData(c L1BlockCommitment, aux *AuxData) error {
	if aux == nil {
		aux = &AuxData{}
	}
	b, err := Codec.Marshal(CodecVersion, aux)
	if err != nil {
		return err
	}
	return s.auxDB.Put(c.Key(), b)
}
