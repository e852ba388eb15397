// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/ava-labs/anchorvm/mmr"
)

const commitmentKeyLen = wrappers.LongLen + chainhash.HashSize

var errBadCommitmentKey = errors.New("malformed L1 block commitment key")

// L1BlockCommitment identifies a block of the base chain.
type L1BlockCommitment struct {
	Height  uint64         `serialize:"true"`
	BlockID chainhash.Hash `serialize:"true"`
}

// NewL1BlockCommitment ...
func NewL1BlockCommitment(height uint64, blockID chainhash.Hash) L1BlockCommitment {
	return L1BlockCommitment{Height: height, BlockID: blockID}
}

func (c L1BlockCommitment) String() string {
	return fmt.Sprintf("%d@%s", c.Height, c.BlockID)
}

// Key returns the database key of [c]. Keys sort by height.
func (c L1BlockCommitment) Key() []byte {
	key := make([]byte, commitmentKeyLen)
	binary.BigEndian.PutUint64(key, c.Height)
	copy(key[wrappers.LongLen:], c.BlockID[:])
	return key
}

func commitmentFromKey(key []byte) (L1BlockCommitment, error) {
	if len(key) != commitmentKeyLen {
		return L1BlockCommitment{}, errBadCommitmentKey
	}
	c := L1BlockCommitment{Height: binary.BigEndian.Uint64(key)}
	copy(c.BlockID[:], key[wrappers.LongLen:])
	return c, nil
}

type commitmentJSON struct {
	Height  uint64 `json:"height"`
	BlockID string `json:"blockid"`
}

// MarshalJSON writes the block id in the base chain's usual byte order.
func (c L1BlockCommitment) MarshalJSON() ([]byte, error) {
	return json.Marshal(commitmentJSON{Height: c.Height, BlockID: c.BlockID.String()})
}

func (c *L1BlockCommitment) UnmarshalJSON(b []byte) error {
	var raw commitmentJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	blockID, err := chainhash.NewHashFromStr(raw.BlockID)
	if err != nil {
		return fmt.Errorf("invalid block id %q: %w", raw.BlockID, err)
	}
	c.Height = raw.Height
	c.BlockID = *blockID
	return nil
}

// LogEntry is an event emitted by a subprotocol while processing a block.
type LogEntry struct {
	Subprotocol uint8  `serialize:"true" json:"subprotocol"`
	Kind        uint16 `serialize:"true" json:"kind"`
	Payload     []byte `serialize:"true" json:"payload"`
}

// AuxEntry is subprotocol output that is kept next to a manifest but not
// committed into the accumulator.
type AuxEntry struct {
	Subprotocol uint8  `serialize:"true" json:"subprotocol"`
	Data        []byte `serialize:"true" json:"data"`
}

// AuxData is everything the STF produced for a block besides the new state.
type AuxData struct {
	Entries []AuxEntry `serialize:"true" json:"entries"`
}

// AsmManifest summarizes one processed L1 block.
type AsmManifest struct {
	Height     uint64         `serialize:"true"`
	BlockID    chainhash.Hash `serialize:"true"`
	WtxidsRoot chainhash.Hash `serialize:"true"`
	Logs       []LogEntry     `serialize:"true"`
}

// NewManifest ...
func NewManifest(c L1BlockCommitment, wtxidsRoot chainhash.Hash, logs []LogEntry) *AsmManifest {
	if logs == nil {
		logs = []LogEntry{}
	}
	return &AsmManifest{
		Height:     c.Height,
		BlockID:    c.BlockID,
		WtxidsRoot: wtxidsRoot,
		Logs:       logs,
	}
}

// Commitment returns the block this manifest was derived from.
func (m *AsmManifest) Commitment() L1BlockCommitment {
	return NewL1BlockCommitment(m.Height, m.BlockID)
}

// Bytes returns the canonical encoding of [m].
func (m *AsmManifest) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, m)
}

// Hash returns the accumulator leaf for [m].
func (m *AsmManifest) Hash() (ids.ID, error) {
	b, err := m.Bytes()
	if err != nil {
		return ids.Empty, err
	}
	return ids.ID(hashing.ComputeHash256Array(b)), nil
}

// SectionState is the opaque state of one subprotocol.
type SectionState struct {
	ID   uint8  `serialize:"true" json:"id"`
	Data []byte `serialize:"true" json:"data"`
}

// AccumulatorView is the commitment to the manifest accumulator carried by a
// state. It never contains accumulator nodes beyond the peaks.
type AccumulatorView struct {
	Entries uint64   `serialize:"true" json:"entries"`
	Peaks   []ids.ID `serialize:"true" json:"peaks"`
}

// ViewOf ...
func ViewOf(c *mmr.CompactMmr) AccumulatorView {
	peaks := make([]ids.ID, len(c.Roots))
	copy(peaks, c.Roots)
	return AccumulatorView{Entries: c.Entries, Peaks: peaks}
}

// Compact returns the view as a compact accumulator able to verify proofs.
func (v AccumulatorView) Compact() *mmr.CompactMmr {
	roots := make([]ids.ID, len(v.Peaks))
	copy(roots, v.Peaks)
	return &mmr.CompactMmr{Entries: v.Entries, CapLog2: mmr.CapLog2, Roots: roots}
}

// AsmState is the anchor state after processing the block in Anchor.
type AsmState struct {
	Anchor      L1BlockCommitment `serialize:"true" json:"anchor"`
	Accumulator AccumulatorView   `serialize:"true" json:"accumulator"`
	Sections    []SectionState    `serialize:"true" json:"sections"`
	Logs        []LogEntry        `serialize:"true" json:"logs"`
}

// NewGenesisState returns the state anchored at the genesis block, before any
// subprotocol ran.
func NewGenesisState(genesis L1BlockCommitment) *AsmState {
	return &AsmState{
		Anchor:      genesis,
		Accumulator: AccumulatorView{Peaks: []ids.ID{}},
		Sections:    []SectionState{},
		Logs:        []LogEntry{},
	}
}

// Clone returns a deep copy of [s].
func (s *AsmState) Clone() *AsmState {
	c := &AsmState{
		Anchor: s.Anchor,
		Accumulator: AccumulatorView{
			Entries: s.Accumulator.Entries,
			Peaks:   make([]ids.ID, len(s.Accumulator.Peaks)),
		},
		Sections: make([]SectionState, len(s.Sections)),
		Logs:     make([]LogEntry, len(s.Logs)),
	}
	copy(c.Accumulator.Peaks, s.Accumulator.Peaks)
	for i, section := range s.Sections {
		c.Sections[i] = SectionState{ID: section.ID, Data: cloneBytes(section.Data)}
	}
	for i, entry := range s.Logs {
		c.Logs[i] = LogEntry{Subprotocol: entry.Subprotocol, Kind: entry.Kind, Payload: cloneBytes(entry.Payload)}
	}
	return c
}

// Section returns the state of subprotocol [id], if present.
func (s *AsmState) Section(id uint8) (SectionState, bool) {
	for _, section := range s.Sections {
		if section.ID == id {
			return section, true
		}
	}
	return SectionState{}, false
}

// SetSection inserts or replaces the state of a subprotocol, keeping the
// sections sorted by id.
func (s *AsmState) SetSection(section SectionState) {
	for i := range s.Sections {
		switch {
		case s.Sections[i].ID == section.ID:
			s.Sections[i] = section
			return
		case s.Sections[i].ID > section.ID:
			s.Sections = append(s.Sections, SectionState{})
			copy(s.Sections[i+1:], s.Sections[i:])
			s.Sections[i] = section
			return
		}
	}
	s.Sections = append(s.Sections, section)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
