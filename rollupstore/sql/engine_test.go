// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sql

import (
	"context"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/rollup/core/types"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

// TestSealAndRevert is spec.md §8 scenario 6 against the SQL engine.
func TestSealAndRevert(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)
	require.NoError(t, e.Init(ctx))

	for i := uint64(1); i <= 5; i++ {
		b := &types.BatchRecord{
			Number:     i,
			FirstBlock: i,
			LastBlock:  i,
			StateRoot:  common.Hash{byte(i)},
		}
		require.NoError(t, e.SealBatch(ctx, b))
	}
	require.NoError(t, e.SealBatchWithProverInput(ctx,
		&types.BatchRecord{Number: 6, FirstBlock: 6, LastBlock: 6, StateRoot: common.Hash{6}},
		&types.ProverInputData{BatchNumber: 6, ProverVersion: "v1"}))

	require.NoError(t, e.RevertToBatch(ctx, 3))

	b4, err := e.GetBatch(ctx, 4, "cancun")
	require.NoError(t, err)
	require.Nil(t, b4)

	b3, err := e.GetBatch(ctx, 3, "cancun")
	require.NoError(t, err)
	require.NotNil(t, b3)
	require.Equal(t, common.Hash{3}, b3.StateRoot)

	contains4, err := e.ContainsBatch(ctx, 4)
	require.NoError(t, err)
	require.False(t, contains4)

	in6, err := e.GetProverInput(ctx, 6, "v1")
	require.NoError(t, err)
	require.Nil(t, in6)
}

// TestSealBatchWithProverInputAtomic is spec.md §8's rollup-store property:
// a rejected (non-contiguous) seal must leave neither the batch nor the
// prover input persisted.
func TestSealBatchWithProverInputAtomic(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)
	require.NoError(t, e.Init(ctx))

	err := e.SealBatchWithProverInput(ctx,
		&types.BatchRecord{Number: 9, FirstBlock: 9, LastBlock: 9},
		&types.ProverInputData{BatchNumber: 9, ProverVersion: "v1"})
	require.Error(t, err)

	ok, err := e.ContainsBatch(ctx, 9)
	require.NoError(t, err)
	require.False(t, ok)

	in, err := e.GetProverInput(ctx, 9, "v1")
	require.NoError(t, err)
	require.Nil(t, in)
}

func TestCommitAndVerifyTx(t *testing.T) {
	ctx := context.Background()
	e := openTestEngine(t)
	require.NoError(t, e.Init(ctx))
	require.NoError(t, e.SealBatch(ctx, &types.BatchRecord{Number: 1, FirstBlock: 1, LastBlock: 1}))

	commit := common.Hash{0x11}
	verify := common.Hash{0x22}
	require.NoError(t, e.SetCommitTx(ctx, 1, commit))
	require.NoError(t, e.SetVerifyTx(ctx, 1, verify))

	gotCommit, err := e.GetCommitTx(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, commit, *gotCommit)

	gotVerify, err := e.GetVerifyTx(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, verify, *gotVerify)
}
