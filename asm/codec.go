// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"fmt"

	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/utils/units"
)

const (
	// CodecVersion is the version every stored value is written with
	CodecVersion = 0

	// states carry the log buffer of a whole block
	codecMaxSize = 16 * units.MiB
)

// Codec encodes manifests, states and aux data. Manifest hashes commit to
// this encoding, so it must never change for CodecVersion.
var Codec codec.Manager

func init() {
	Codec = codec.NewManager(codecMaxSize)
	if err := Codec.RegisterCodec(CodecVersion, linearcodec.NewDefault()); err != nil {
		panic(err)
	}
}

// parse decodes [b] into [v], rejecting values written with another codec
// version.
func parse(b []byte, v interface{}, what string) error {
	parsedVersion, err := Codec.Unmarshal(b, v)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", what, err)
	}
	if parsedVersion != CodecVersion {
		return fmt.Errorf("%w: %s has version %d", errWrongCodecVersion, what, parsedVersion)
	}
	return nil
}
