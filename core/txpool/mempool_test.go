// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	gtypes "github.com/luxfi/geth/core/types"
	"github.com/luxfi/rollup/core/types"
	"github.com/stretchr/testify/require"
)

func legacyMempoolTx(nonce uint64, gasPrice int64, sender common.Address) *types.MempoolTransaction {
	tx := types.NewTransaction(gtypes.NewTx(&gtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: big.NewInt(gasPrice),
		Gas:      21000,
		To:       &common.Address{0xAA},
	}), false)
	return &types.MempoolTransaction{Tx: tx, Sender: sender, Hash: tx.Hash(), Arrival: time.Now()}
}

// TestMempoolEviction is spec.md §8 scenario 1: max_size=3, insert four
// distinct-(sender,nonce) transactions; the oldest is evicted.
func TestMempoolEviction(t *testing.T) {
	pool := New(Config{MaxSize: 3}, nil)

	s1, s2, s3, s4 := common.Address{1}, common.Address{2}, common.Address{3}, common.Address{4}
	tx1 := legacyMempoolTx(0, 1, s1)
	tx2 := legacyMempoolTx(0, 1, s2)
	tx3 := legacyMempoolTx(0, 1, s3)
	tx4 := legacyMempoolTx(0, 1, s4)

	pool.AddTransaction(tx1.Hash, s1, tx1)
	pool.AddTransaction(tx2.Hash, s2, tx2)
	pool.AddTransaction(tx3.Hash, s3, tx3)
	pool.AddTransaction(tx4.Hash, s4, tx4)

	require.False(t, pool.Has(tx1.Hash), "h1 must be evicted")
	require.True(t, pool.Has(tx2.Hash))
	require.True(t, pool.Has(tx3.Hash))
	require.True(t, pool.Has(tx4.Hash))

	size, blocked := pool.Size()
	require.Equal(t, 3, size)
	require.Equal(t, 0, blocked)
}

func TestFindTxToReplaceUnderpriced(t *testing.T) {
	pool := New(Config{MaxSize: 10}, nil)
	sender := common.Address{1}
	old := legacyMempoolTx(0, 10, sender)
	pool.AddTransaction(old.Hash, sender, old)

	lowball := types.NewTransaction(gtypes.NewTx(&gtypes.LegacyTx{Nonce: 0, GasPrice: big.NewInt(5), Gas: 21000, To: &common.Address{0xAA}}), false)
	_, _, err := pool.FindTxToReplace(sender, 0, lowball)
	require.ErrorIs(t, err, ErrUnderpricedReplacement)

	higher := types.NewTransaction(gtypes.NewTx(&gtypes.LegacyTx{Nonce: 0, GasPrice: big.NewInt(11), Gas: 21000, To: &common.Address{0xAA}}), false)
	replacedHash, ok, err := pool.FindTxToReplace(sender, 0, higher)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, old.Hash, replacedHash)
}

func TestGetNonce(t *testing.T) {
	pool := New(Config{MaxSize: 10}, nil)
	sender := common.Address{1}
	_, ok := pool.GetNonce(sender)
	require.False(t, ok)

	tx := legacyMempoolTx(3, 1, sender)
	pool.AddTransaction(tx.Hash, sender, tx)
	nonce, ok := pool.GetNonce(sender)
	require.True(t, ok)
	require.Equal(t, uint64(4), nonce)
}

func TestAwaitTxAddedWakesAfterAdd(t *testing.T) {
	pool := New(Config{MaxSize: 10}, nil)
	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- pool.AwaitTxAdded(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	sender := common.Address{1}
	tx := legacyMempoolTx(0, 1, sender)
	pool.AddTransaction(tx.Hash, sender, tx)

	require.NoError(t, <-done)
}

func TestFilterTransactionsSortsBySenderNonce(t *testing.T) {
	pool := New(Config{MaxSize: 10}, nil)
	sender := common.Address{1}
	tx1 := legacyMempoolTx(1, 5, sender)
	tx0 := legacyMempoolTx(0, 5, sender)
	pool.AddTransaction(tx1.Hash, sender, tx1)
	pool.AddTransaction(tx0.Hash, sender, tx0)

	filtered := pool.FilterTransactions(Filter{})
	txs := filtered[sender]
	require.Len(t, txs, 2)
	require.Equal(t, uint64(0), txs[0].Tx.Nonce())
	require.Equal(t, uint64(1), txs[1].Tx.Nonce())
}
