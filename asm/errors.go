// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package asm

import (
	"errors"
	"fmt"
)

var (
	// ErrBelowGenesis is returned for blocks the state machine ignores.
	ErrBelowGenesis = errors.New("block is below genesis")

	ErrPivotBelowGenesis = errors.New("no anchored ancestor at or above genesis")
	ErrMissingL1Block    = errors.New("missing L1 block")
	ErrL1BlockMismatch   = errors.New("L1 block does not match its commitment")
	ErrStfFailed         = errors.New("state transition failed")
	ErrLeafIndexMismatch = errors.New("manifest leaf index does not match block height")
	ErrWorkerTerminated  = errors.New("worker terminated")
	ErrNotLaunched       = errors.New("worker not launched")

	errMissingLatestAnchor = errors.New("initialized database has no latest anchor")
	errWrongCodecVersion   = errors.New("wrong codec version")
)

// IsFatal reports whether [err] must stop the worker. Every error except
// ErrBelowGenesis is fatal.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrBelowGenesis)
}

// causeError is a sentinel failure caused by another error. errors.Is matches
// both the sentinel and anything in the cause chain.
type causeError struct {
	sentinel error
	context  string
	cause    error
}

func wrapCause(sentinel error, cause error, format string, args ...interface{}) error {
	return &causeError{
		sentinel: sentinel,
		context:  fmt.Sprintf(format, args...),
		cause:    cause,
	}
}

func (e *causeError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.sentinel, e.context, e.cause)
}

func (e *causeError) Is(target error) bool { return target == e.sentinel }

func (e *causeError) Unwrap() error { return e.cause }
