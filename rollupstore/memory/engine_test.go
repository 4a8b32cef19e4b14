// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package memory

import (
	"context"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/rollup/core/types"
	"github.com/stretchr/testify/require"
)

// TestSealAndRevert is spec.md §8 scenario 6: on top of genesis batch 0,
// seal batches 1..=6 with distinct state roots (batch 6 with a prover
// input), revert_to_batch(3), and expect batches 4 and 5 and batch 6's
// prover input to disappear while batch 3 survives.
func TestSealAndRevert(t *testing.T) {
	ctx := context.Background()
	e := New()
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
	require.NoError(t, e.SealBatchWithProverInput(ctx, &types.BatchRecord{Number: 6, FirstBlock: 6, LastBlock: 6, StateRoot: common.Hash{6}},
		&types.ProverInputData{BatchNumber: 6, ProverVersion: "v1"}))

	require.NoError(t, e.RevertToBatch(ctx, 3))

	b4, err := e.GetBatch(ctx, 4, "cancun")
	require.NoError(t, err)
	require.Nil(t, b4)

	b5, err := e.GetBatch(ctx, 5, "cancun")
	require.NoError(t, err)
	require.Nil(t, b5)

	b3, err := e.GetBatch(ctx, 3, "cancun")
	require.NoError(t, err)
	require.NotNil(t, b3)
	require.Equal(t, uint64(3), b3.Number)

	contains4, err := e.ContainsBatch(ctx, 4)
	require.NoError(t, err)
	require.False(t, contains4)

	in6, err := e.GetProverInput(ctx, 6, "v1")
	require.NoError(t, err)
	require.Nil(t, in6)
}

func TestSealBatchRejectsNonContiguous(t *testing.T) {
	ctx := context.Background()
	e := New()
	require.NoError(t, e.Init(ctx))
	err := e.SealBatch(ctx, &types.BatchRecord{Number: 5, FirstBlock: 1, LastBlock: 1})
	require.Error(t, err)
}

func TestUpdateOperationsCountPersists(t *testing.T) {
	ctx := context.Background()
	e := New()
	require.NoError(t, e.Init(ctx))
	require.NoError(t, e.UpdateOperationsCount(ctx, 3, 1, 2))
	require.NoError(t, e.UpdateOperationsCount(ctx, 4, 0, 1))
	txs, priv, msgs, err := e.OperationsCount(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(7), txs)
	require.Equal(t, uint64(1), priv)
	require.Equal(t, uint64(3), msgs)
}
