// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/leveldb"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/ava-labs/avalanchego/version"
	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ava-labs/anchorvm/asm"
	"github.com/ava-labs/anchorvm/l1"
	"github.com/ava-labs/anchorvm/stf"
)

const (
	Name = "anchorvm"

	apiPath     = "/ext/" + asm.ServiceName
	metricsPath = "/metrics"

	blockQueueSize  = 16
	shutdownTimeout = 5 * time.Second
)

var (
	Version = version.NewDefaultVersion(0, 1, 0)

	asmPrefix = []byte("asm")
	l1Prefix  = []byte("l1")
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", Name, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	v, err := getViper(args)
	if err != nil {
		return fmt.Errorf("couldn't get config: %w", err)
	}
	// Print version and exit
	if v.GetBool(versionKey) {
		fmt.Printf("%s@%s\n", Name, Version)
		return nil
	}
	config, err := getConfig(v)
	if err != nil {
		return err
	}
	if err := setupLogging(config); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	db, err := openDB(config.DBDir)
	if err != nil {
		return fmt.Errorf("couldn't open database at %s: %w", config.DBDir, err)
	}
	state := asm.NewState(prefixdb.New(asmPrefix, db))
	defer func() {
		errs := wrappers.Errs{}
		errs.Add(state.Close(), db.Close())
		if errs.Errored() {
			log.Error("failed to close database", "err", errs.Err)
		}
	}()

	rpcClient, err := l1.DialRPC(config.RPC)
	if err != nil {
		return fmt.Errorf("couldn't create L1 rpc client: %w", err)
	}
	defer rpcClient.Shutdown()

	l1Log := log.New("module", "l1")
	rpcSource := l1.NewRPCSource(rpcClient, config.RPC, l1Log)
	source, err := l1.NewCachedSource(
		l1.NewBlockStore(prefixdb.New(l1Prefix, db), rpcSource),
		config.BlockCacheSize,
		registry,
	)
	if err != nil {
		return err
	}

	machine, err := stf.NewMachine(
		log.New("module", "stf"),
		stf.NewDebugSubprotocol(config.DebugTag),
		stf.NewCheckpointSubprotocol(config.CheckpointTag),
	)
	if err != nil {
		return err
	}

	worker, err := asm.NewWorker(
		asm.Config{Genesis: config.Genesis},
		state,
		source,
		machine,
		registry,
		log.New("module", "asm"),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := worker.OnLaunch(ctx); err != nil {
		return err
	}

	server, err := newHTTPServer(config.HTTPAddr, worker, registry)
	if err != nil {
		return err
	}
	go func() {
		log.Info("serving api", "addr", config.HTTPAddr, "api", apiPath, "metrics", metricsPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api server stopped", "err", err)
			stop()
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("failed to stop api server", "err", err)
		}
	}()

	blocks := make(chan asm.L1BlockCommitment, blockQueueSize)
	follower := l1.NewFollower(rpcSource, config.PollInterval, l1Log)
	go func() {
		_ = follower.Run(ctx, blocks)
	}()

	log.Info("following L1", "genesis", config.Genesis, "rpc", config.RPC.Host)
	err = worker.Run(ctx, blocks)
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("shutting down")
		return nil
	case err != nil:
		return err
	}
	return nil
}

func openDB(dir string) (database.Database, error) {
	return leveldb.New(dir, nil, logging.NoLog{})
}

func newHTTPServer(addr string, worker *asm.Worker, registry *prometheus.Registry) (*http.Server, error) {
	handler, err := asm.NewHandler(asm.ServiceName, asm.NewService(worker))
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(apiPath, handler)
	mux.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}, nil
}

func setupLogging(config Config) error {
	lvl, err := log.LvlFromString(config.LogLevel)
	if err != nil {
		return err
	}
	format := log.TerminalFormat()
	if config.LogFormat == "json" {
		format = log.JsonFormat()
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, format)))
	return nil
}
