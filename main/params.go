// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/anchorvm/asm"
	"github.com/ava-labs/anchorvm/l1"
	"github.com/ava-labs/anchorvm/stf"
)

const (
	envPrefix = "anchorvm"

	versionKey             = "version"
	configFileKey          = "config-file"
	dbDirKey               = "db-dir"
	logLevelKey            = "log-level"
	logFormatKey           = "log-format"
	genesisHeightKey       = "genesis-height"
	genesisBlockKey        = "genesis-block"
	btcRPCHostKey          = "btc-rpc-host"
	btcRPCUserKey          = "btc-rpc-user"
	btcRPCPassKey          = "btc-rpc-pass"
	btcRPCRetriesKey       = "btc-rpc-retries"
	btcRPCRetryIntervalKey = "btc-rpc-retry-interval"
	pollIntervalKey        = "poll-interval"
	httpAddrKey            = "http-addr"
	blockCacheSizeKey      = "block-cache-size"
	checkpointTagKey       = "checkpoint-tag"
	debugTagKey            = "debug-tag"
)

var errMissingGenesis = errors.New("genesis block hash is required")

// Config of the node binary
type Config struct {
	DBDir     string
	LogLevel  string
	LogFormat string

	Genesis asm.L1BlockCommitment

	RPC            l1.RPCConfig
	PollInterval   time.Duration
	HTTPAddr       string
	BlockCacheSize int

	CheckpointTag []byte
	DebugTag      []byte
}

func buildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("anchorvm", pflag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints the version and quits")
	fs.String(configFileKey, "", "Config file to read, any format viper supports")
	fs.String(dbDirKey, "anchorvm-db", "Directory of the database")
	fs.String(logLevelKey, "info", "Log level (crit, error, warn, info, debug)")
	fs.String(logFormatKey, "terminal", "Log format (terminal, json)")
	fs.Uint64(genesisHeightKey, 0, "Height of the genesis L1 block")
	fs.String(genesisBlockKey, "", "Hash of the genesis L1 block")
	fs.String(btcRPCHostKey, "127.0.0.1:8332", "host:port of the L1 node JSON-RPC endpoint")
	fs.String(btcRPCUserKey, "", "L1 node RPC user")
	fs.String(btcRPCPassKey, "", "L1 node RPC password")
	fs.Int(btcRPCRetriesKey, 5, "Extra attempts for failed L1 node calls")
	fs.Duration(btcRPCRetryIntervalKey, 2*time.Second, "Wait between attempts of a failed L1 node call")
	fs.Duration(pollIntervalKey, 10*time.Second, "Interval between L1 tip polls")
	fs.String(httpAddrKey, "127.0.0.1:9650", "Listen address of the API and metrics server")
	fs.Int(blockCacheSizeKey, l1.DefaultBlockCacheSize, "Number of L1 blocks kept in memory")
	fs.String(checkpointTagKey, hex.EncodeToString(stf.DefaultCheckpointTag), "Hex tag of checkpoint OP_RETURN outputs")
	fs.String(debugTagKey, hex.EncodeToString(stf.DefaultDebugTag), "Hex tag of debug OP_RETURN outputs")

	return fs
}

// getViper returns the viper environment for the node binary
func getViper(args []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := buildFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if configFile := v.GetString(configFileKey); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func getConfig(v *viper.Viper) (Config, error) {
	if v.GetString(genesisBlockKey) == "" {
		return Config{}, errMissingGenesis
	}
	genesisID, err := chainhash.NewHashFromStr(v.GetString(genesisBlockKey))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", genesisBlockKey, err)
	}
	checkpointTag, err := hex.DecodeString(v.GetString(checkpointTagKey))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", checkpointTagKey, err)
	}
	debugTag, err := hex.DecodeString(v.GetString(debugTagKey))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", debugTagKey, err)
	}

	return Config{
		DBDir:     v.GetString(dbDirKey),
		LogLevel:  v.GetString(logLevelKey),
		LogFormat: v.GetString(logFormatKey),
		Genesis:   asm.NewL1BlockCommitment(v.GetUint64(genesisHeightKey), *genesisID),
		RPC: l1.RPCConfig{
			Host:          v.GetString(btcRPCHostKey),
			User:          v.GetString(btcRPCUserKey),
			Pass:          v.GetString(btcRPCPassKey),
			Retries:       v.GetInt(btcRPCRetriesKey),
			RetryInterval: v.GetDuration(btcRPCRetryIntervalKey),
		},
		PollInterval:   v.GetDuration(pollIntervalKey),
		HTTPAddr:       v.GetString(httpAddrKey),
		BlockCacheSize: v.GetInt(blockCacheSizeKey),
		CheckpointTag:  checkpointTag,
		DebugTag:       debugTag,
	}, nil
}
