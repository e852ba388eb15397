// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"net/http"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	cjson "github.com/ava-labs/avalanchego/utils/json"
	"github.com/gorilla/rpc/v2"
)

// ServiceName is the name the status service is registered under.
const ServiceName = "asm"

// StatusReader is anything publishing worker snapshots.
type StatusReader interface {
	Status() *AsmWorkerStatus
}

// Service is the API service of the anchor state machine. It only reads
// published snapshots.
type Service struct{ status StatusReader }

func NewService(status StatusReader) *Service {
	return &Service{status: status}
}

// NewHandler returns a JSON-RPC handler serving [service] as [name].
func NewHandler(name string, service interface{}) (http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return server, server.RegisterService(service, name)
}

// EmptyArgs are the arguments of every status call
type EmptyArgs struct{}

// GetStatusReply is the reply from GetStatus
type GetStatusReply struct {
	Initialized bool               `json:"initialized"`
	CurBlock    *L1BlockCommitment `json:"curBlock"`
	CurState    *AsmState          `json:"curState"`
}

// GetStatus returns the current anchor and the state anchored there
func (s *Service) GetStatus(_ *http.Request, _ *EmptyArgs, reply *GetStatusReply) error {
	status := s.status.Status()
	reply.Initialized = status.IsInitialized
	reply.CurBlock = status.CurBlock
	reply.CurState = status.CurState
	return nil
}

// GetLogsReply is the reply from GetLogs
type GetLogsReply struct {
	Logs []LogEntry `json:"logs"`
}

// GetLogs returns the logs emitted while processing the current anchor
func (s *Service) GetLogs(_ *http.Request, _ *EmptyArgs, reply *GetLogsReply) error {
	reply.Logs = s.status.Status().Logs()
	return nil
}

// GetAccumulatorReply is the reply from GetAccumulator
type GetAccumulatorReply struct {
	Entries cjson.Uint64 `json:"entries"`
	CapLog2 cjson.Uint8  `json:"capLog2"`
	Roots   []ids.ID     `json:"roots"`
	// CBOR is the hex encoded compact accumulator
	CBOR string `json:"cbor"`
}

// GetAccumulator returns the compact manifest accumulator of the current
// state
func (s *Service) GetAccumulator(_ *http.Request, _ *EmptyArgs, reply *GetAccumulatorReply) error {
	status := s.status.Status()
	if status.CurState == nil {
		return ErrNotLaunched
	}

	compact := status.CurState.Accumulator.Compact()
	b, err := compact.MarshalCBOR()
	if err != nil {
		return err
	}
	encoded, err := formatting.EncodeWithChecksum(formatting.Hex, b)
	if err != nil {
		return err
	}

	reply.Entries = cjson.Uint64(compact.Entries)
	reply.CapLog2 = cjson.Uint8(compact.CapLog2)
	reply.Roots = compact.Roots
	reply.CBOR = encoded
	return nil
}
