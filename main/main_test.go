// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenDB(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	db, err := openDB(dir)
	require.NoError(err)
	require.NoError(db.Put([]byte("key"), []byte("value")))
	require.NoError(db.Close())

	db, err = openDB(dir)
	require.NoError(err)
	value, err := db.Get([]byte("key"))
	require.NoError(err)
	require.Equal([]byte("value"), value)
	require.NoError(db.Close())
}
