// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

// AsmWorkerStatus is an immutable snapshot of the worker. A published status
// is never modified; readers may keep it as long as they like.
type AsmWorkerStatus struct {
	IsInitialized bool
	CurBlock      *L1BlockCommitment
	CurState      *AsmState
}

// Logs returns the log buffer of the current state.
func (s *AsmWorkerStatus) Logs() []LogEntry {
	if s.CurState == nil || len(s.CurState.Logs) == 0 {
		return []LogEntry{}
	}
	return s.CurState.Logs
}

func newStatus(initialized bool, state *AsmState) *AsmWorkerStatus {
	status := &AsmWorkerStatus{IsInitialized: initialized}
	if state != nil {
		anchor := state.Anchor
		status.CurBlock = &anchor
		status.CurState = state.Clone()
	}
	return status
}
