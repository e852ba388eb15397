// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/wire"
	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/anchorvm/asm"
)

var (
	ErrNotChild              = errors.New("block does not extend the anchor")
	ErrDuplicateSubprotocol  = errors.New("duplicate subprotocol id")
	errSubprotocolWrongIndex = errors.New("subprotocol returned a section of another subprotocol")

	_ asm.Stf = &Machine{}
)

// Subprotocol is one independent component of the state transition. It owns
// the section of the anchor state carrying its ID.
type Subprotocol interface {
	ID() uint8
	// Process returns the section after [block]. [section] is empty the first
	// time the subprotocol runs and must not be modified.
	Process(section asm.SectionState, block *wire.MsgBlock) (*Output, error)
}

// Output of a Subprotocol for a single block.
type Output struct {
	Section asm.SectionState
	Logs    []asm.LogEntry
	Aux     []asm.AuxEntry
}

// Machine runs its subprotocols in ascending ID order over every block.
type Machine struct {
	subprotocols []Subprotocol
	log          log.Logger
}

func NewMachine(logger log.Logger, subprotocols ...Subprotocol) (*Machine, error) {
	sorted := make([]Subprotocol, len(subprotocols))
	copy(sorted, subprotocols)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID() == sorted[i-1].ID() {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateSubprotocol, sorted[i].ID())
		}
	}
	return &Machine{
		subprotocols: sorted,
		log:          logger,
	}, nil
}

// Transition implements asm.Stf. The returned state carries only the logs of
// [block].
func (m *Machine) Transition(state *asm.AsmState, block *wire.MsgBlock) (*asm.AsmState, *asm.AuxData, error) {
	blockID := block.BlockHash()
	if block.Header.PrevBlock != state.Anchor.BlockID {
		return nil, nil, fmt.Errorf("%w: %s has parent %s, anchor is %s",
			ErrNotChild, blockID, block.Header.PrevBlock, state.Anchor)
	}

	newState := state.Clone()
	newState.Anchor = asm.NewL1BlockCommitment(state.Anchor.Height+1, blockID)
	newState.Logs = []asm.LogEntry{}
	aux := &asm.AuxData{Entries: []asm.AuxEntry{}}

	for _, sp := range m.subprotocols {
		id := sp.ID()
		section, ok := state.Section(id)
		if !ok {
			section = asm.SectionState{ID: id}
		}

		out, err := sp.Process(section, block)
		if err != nil {
			return nil, nil, fmt.Errorf("subprotocol %d at %s: %w", id, newState.Anchor, err)
		}
		if out.Section.ID != id {
			return nil, nil, fmt.Errorf("%w: %d returned %d", errSubprotocolWrongIndex, id, out.Section.ID)
		}

		newState.SetSection(out.Section)
		newState.Logs = append(newState.Logs, out.Logs...)
		aux.Entries = append(aux.Entries, out.Aux...)
	}

	m.log.Debug("applied block",
		"anchor", newState.Anchor,
		"logs", len(newState.Logs),
		"aux", len(aux.Entries),
	)
	return newState, aux, nil
}
