// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/ava-labs/anchorvm/asm"
)

const (
	DebugSubprotocolID      uint8 = 0
	CheckpointSubprotocolID uint8 = 1

	DebugLogKind      uint16 = 1
	CheckpointLogKind uint16 = 1

	checkpointLen = wrappers.LongLen + chainhash.HashSize
)

var (
	DefaultDebugTag      = []byte("ASMD")
	DefaultCheckpointTag = []byte("ASMC")

	ErrCheckpointEpoch    = errors.New("checkpoint epoch does not increase")
	errBadDebugSection    = errors.New("malformed debug section")
	errBadCheckpointState = errors.New("malformed checkpoint section")

	_ Subprotocol = &DebugSubprotocol{}
	_ Subprotocol = &CheckpointSubprotocol{}
)

// DebugSubprotocol turns tagged OP_RETURN outputs into log entries. Its
// section counts the entries emitted so far.
type DebugSubprotocol struct {
	tag []byte
}

func NewDebugSubprotocol(tag []byte) *DebugSubprotocol {
	return &DebugSubprotocol{tag: tag}
}

func (*DebugSubprotocol) ID() uint8 { return DebugSubprotocolID }

func (d *DebugSubprotocol) Process(section asm.SectionState, block *wire.MsgBlock) (*Output, error) {
	count := uint64(0)
	switch len(section.Data) {
	case 0:
	case wrappers.LongLen:
		count = binary.BigEndian.Uint64(section.Data)
	default:
		return nil, errBadDebugSection
	}

	out := &Output{}
	for _, payload := range taggedPayloads(block, d.tag) {
		out.Logs = append(out.Logs, asm.LogEntry{
			Subprotocol: DebugSubprotocolID,
			Kind:        DebugLogKind,
			Payload:     payload,
		})
	}

	data := make([]byte, wrappers.LongLen)
	binary.BigEndian.PutUint64(data, count+uint64(len(out.Logs)))
	out.Section = asm.SectionState{ID: DebugSubprotocolID, Data: data}
	return out, nil
}

// Checkpoint is a state root the rollup committed to on the base chain.
type Checkpoint struct {
	Epoch uint64
	Root  chainhash.Hash
}

// Bytes returns epoch (8 bytes, big endian) followed by the root.
func (c Checkpoint) Bytes() []byte {
	b := make([]byte, checkpointLen)
	binary.BigEndian.PutUint64(b, c.Epoch)
	copy(b[wrappers.LongLen:], c.Root[:])
	return b
}

// ParseCheckpoint ...
func ParseCheckpoint(b []byte) (Checkpoint, bool) {
	if len(b) != checkpointLen {
		return Checkpoint{}, false
	}
	c := Checkpoint{Epoch: binary.BigEndian.Uint64(b)}
	copy(c.Root[:], b[wrappers.LongLen:])
	return c, true
}

// CheckpointSubprotocol tracks the latest checkpoint posted with its tag.
// Malformed payloads are ignored; a well formed checkpoint whose epoch does not
// exceed the latest one invalidates the block.
type CheckpointSubprotocol struct {
	tag []byte
}

func NewCheckpointSubprotocol(tag []byte) *CheckpointSubprotocol {
	return &CheckpointSubprotocol{tag: tag}
}

func (*CheckpointSubprotocol) ID() uint8 { return CheckpointSubprotocolID }

func (c *CheckpointSubprotocol) Process(section asm.SectionState, block *wire.MsgBlock) (*Output, error) {
	var (
		latest    Checkpoint
		hasLatest bool
	)
	if len(section.Data) != 0 {
		latest, hasLatest = ParseCheckpoint(section.Data)
		if !hasLatest {
			return nil, errBadCheckpointState
		}
	}

	out := &Output{}
	for _, payload := range taggedPayloads(block, c.tag) {
		checkpoint, ok := ParseCheckpoint(payload)
		if !ok {
			continue
		}
		if hasLatest && checkpoint.Epoch <= latest.Epoch {
			return nil, fmt.Errorf("%w: epoch %d after %d", ErrCheckpointEpoch, checkpoint.Epoch, latest.Epoch)
		}
		latest, hasLatest = checkpoint, true

		b := checkpoint.Bytes()
		out.Logs = append(out.Logs, asm.LogEntry{
			Subprotocol: CheckpointSubprotocolID,
			Kind:        CheckpointLogKind,
			Payload:     b,
		})
		out.Aux = append(out.Aux, asm.AuxEntry{
			Subprotocol: CheckpointSubprotocolID,
			Data:        b,
		})
	}

	out.Section = asm.SectionState{ID: CheckpointSubprotocolID}
	if hasLatest {
		out.Section.Data = latest.Bytes()
	}
	return out, nil
}
