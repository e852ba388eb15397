// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ava-labs/avalanchego/database"
	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "asm"

// Phase is the lifecycle stage of a Worker.
type Phase int

const (
	Uninitialized Phase = iota
	Ready
	Terminal
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Terminal:
		return "terminal"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Response tells the driver of a Worker whether to keep feeding it.
type Response int

const (
	Continue Response = iota
	ShouldExit
)

// Config of a Worker.
type Config struct {
	// Genesis is the first block the state machine anchors to.
	Genesis L1BlockCommitment
	// GenesisState is stored at Genesis on first launch. Defaults to
	// NewGenesisState(Genesis).
	GenesisState *AsmState
	// Namespace of the worker metrics. Defaults to "asm".
	Namespace string
}

// Worker drives the anchor state machine. It is not safe for concurrent use:
// a single goroutine calls OnLaunch, then ProcessMessage or Run. Status may
// be called from any goroutine.
type Worker struct {
	config Config
	store  State

	resolver     *PivotResolver
	bootstrapper *GenesisBootstrapper
	replay       *ReplayEngine

	metrics *metrics
	log     log.Logger

	phase    Phase
	curState *AsmState

	// status holds the latest *AsmWorkerStatus
	status atomic.Value
}

func NewWorker(
	config Config,
	store State,
	source L1BlockSource,
	stf Stf,
	registerer prometheus.Registerer,
	logger log.Logger,
) (*Worker, error) {
	if config.Namespace == "" {
		config.Namespace = defaultNamespace
	}
	m, err := newMetrics(config.Namespace, registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	genesisHeight := config.Genesis.Height
	w := &Worker{
		config:       config,
		store:        store,
		resolver:     NewPivotResolver(store, source, genesisHeight),
		bootstrapper: NewGenesisBootstrapper(store, source, logger),
		replay:       NewReplayEngine(store, store.Accumulator(), stf, genesisHeight, logger),
		metrics:      m,
		log:          logger,
	}
	w.status.Store(newStatus(false, nil))
	return w, nil
}

// OnLaunch loads the current anchor, storing the genesis state first if the
// database is empty.
func (w *Worker) OnLaunch(ctx context.Context) error {
	switch w.phase {
	case Ready:
		return nil
	case Terminal:
		return ErrWorkerTerminated
	}

	state, err := w.loadCurrentState()
	if err != nil {
		w.store.Abort()
		w.fail(err)
		return err
	}

	w.phase = Ready
	w.curState = state
	w.publish()
	w.log.Info("anchor state machine launched",
		"anchor", state.Anchor,
		"leaves", state.Accumulator.Entries,
	)
	return nil
}

func (w *Worker) loadCurrentState() (*AsmState, error) {
	latest, err := w.store.GetLatestAnchor()
	switch {
	case err == nil:
		state, err := w.store.GetAnchor(latest)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest anchor %s: %w", latest, err)
		}
		return state, nil
	case err != database.ErrNotFound:
		return nil, fmt.Errorf("failed to read latest anchor: %w", err)
	}

	initialized, err := w.store.IsInitialized()
	if err != nil {
		return nil, err
	}
	if initialized {
		return nil, errMissingLatestAnchor
	}

	genesis := w.config.Genesis
	state := w.config.GenesisState
	if state == nil {
		state = NewGenesisState(genesis)
	}
	state = state.Clone()
	state.Anchor = genesis

	if err := w.store.PutAnchor(genesis, state); err != nil {
		return nil, fmt.Errorf("failed to store genesis state: %w", err)
	}
	if err := w.store.SetLatestAnchor(genesis); err != nil {
		return nil, fmt.Errorf("failed to store genesis pointer: %w", err)
	}
	if err := w.store.SetInitialized(); err != nil {
		return nil, err
	}
	if err := w.store.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit genesis state: %w", err)
	}
	w.log.Info("stored genesis state", "anchor", genesis)
	return state, nil
}

// ProcessMessage advances the state machine to the block [c], replaying every
// block between the closest anchored ancestor and [c].
func (w *Worker) ProcessMessage(ctx context.Context, c L1BlockCommitment) Response {
	w.metrics.messages.Inc()

	switch w.phase {
	case Terminal:
		return ShouldExit
	case Uninitialized:
		return w.fail(ErrNotLaunched)
	}

	result, err := w.resolver.Resolve(ctx, c)
	if errors.Is(err, ErrBelowGenesis) {
		w.log.Debug("ignoring block", "block", c, "err", err)
		return Continue
	}
	if err != nil {
		return w.stop(ctx, err)
	}

	if result.Pivot == w.config.Genesis {
		if _, err := w.bootstrapper.Bootstrap(ctx, w.config.Genesis); err != nil {
			return w.stop(ctx, err)
		}
	}

	newState, err := w.replay.Replay(result.PivotState, result.Skipped)
	w.metrics.blocksReplayed.Add(float64(newState.Anchor.Height - result.Pivot.Height))
	if newState.Anchor != result.Pivot {
		w.curState = newState
	}
	if err != nil {
		return w.fail(err)
	}

	w.publish()
	w.log.Debug("processed block",
		"block", c,
		"pivot", result.Pivot,
		"replayed", len(result.Skipped),
	)
	return Continue
}

// Run processes commitments from [blocks] one at a time until the channel is
// closed, [ctx] is done, or a fatal error occurs.
func (w *Worker) Run(ctx context.Context, blocks <-chan L1BlockCommitment) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-blocks:
			if !ok {
				return nil
			}
			if w.ProcessMessage(ctx, c) == ShouldExit {
				if err := ctx.Err(); err != nil {
					return err
				}
				return ErrWorkerTerminated
			}
		}
	}
}

// Status returns the latest published snapshot.
func (w *Worker) Status() *AsmWorkerStatus {
	return w.status.Load().(*AsmWorkerStatus)
}

// stop ends processing of the current message. A failure caused by [ctx]
// being done is an interruption and leaves the worker Ready.
func (w *Worker) stop(ctx context.Context, err error) Response {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		w.log.Info("anchor state machine interrupted", "err", err)
		w.publish()
		return ShouldExit
	}
	return w.fail(err)
}

func (w *Worker) fail(err error) Response {
	w.phase = Terminal
	w.metrics.fatal.Inc()
	w.log.Error("anchor state machine stopped", "err", err)
	w.publish()
	return ShouldExit
}

func (w *Worker) publish() {
	initialized := w.curState != nil
	if initialized {
		w.metrics.observeState(w.curState)
	}
	w.status.Store(newStatus(initialized, w.curState))
}
