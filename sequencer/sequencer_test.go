// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sequencer

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	gtypes "github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/luxfi/rollup/core/txpool"
	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/core/vm"
	"github.com/luxfi/rollup/rollupstore"
	"github.com/luxfi/rollup/rollupstore/memory"
)

// TestMain checks that Run/Shutdown leave no goroutines behind; the
// producer and committer are long-running actors per spec.md §4.F and a
// leak here would otherwise only surface as a slow process-wide leak in
// production.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeState is a minimal StateRootProvider backed by an in-memory
// balance/nonce map, standing in for the trie-backed implementation a real
// node would wire (spec.md §1 treats persistent state as an external
// collaborator this module does not implement).
type fakeState struct {
	mu       sync.Mutex
	balances map[common.Address]*uint256.Int
	nonces   map[common.Address]uint64
}

func newFakeState() *fakeState {
	return &fakeState{balances: make(map[common.Address]*uint256.Int), nonces: make(map[common.Address]uint64)}
}

func (s *fakeState) seed(addr common.Address, balance *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[addr] = balance
}

func (s *fakeState) StateForBlock(ctx context.Context, block vm.BlockContext) (*vm.StateHost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	host := vm.NewStateHost(block, vm.TxContext{})
	for addr, bal := range s.balances {
		host.SetAccountForTesting(addr, s.nonces[addr], bal, nil)
	}
	return host, nil
}

func (s *fakeState) Commit(ctx context.Context, block vm.BlockContext, host *vm.StateHost) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, bal := range host.Balances() {
		b := bal
		s.balances[addr] = &b
		s.nonces[addr] = host.GetNonce(addr)
	}
	return common.Hash{byte(block.BlockNumber)}, nil
}

type fakeSubmitter struct {
	hash common.Hash
}

func (f fakeSubmitter) SubmitCommitment(ctx context.Context, batch *types.BatchRecord, input *types.ProverInputData) (common.Hash, error) {
	return f.hash, nil
}

func TestSequencerProducesAndCommitsBatch(t *testing.T) {
	ctx := context.Background()
	engine := memory.New()
	store := rollupstore.New(engine, nil)
	require.NoError(t, store.Init(ctx))

	pool := txpool.New(txpool.Config{MaxSize: 10}, nil)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)
	recipient := common.Address{0xBE, 0xEF}

	state := newFakeState()
	state.seed(sender, uint256.NewInt(10_000_000_000_000_000))

	signer := gtypes.HomesteadSigner{}
	signed, err := gtypes.SignNewTx(key, signer, &gtypes.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      21000,
		To:       &recipient,
		Value:    big.NewInt(1_000_000_000_000_000),
	})
	require.NoError(t, err)
	tx := types.NewTransaction(signed, false)
	mtx := &types.MempoolTransaction{Tx: tx, Sender: sender, Hash: tx.Hash(), Arrival: time.Now()}
	pool.AddTransaction(mtx.Hash, sender, mtx)

	cfg := Config{
		Coinbase:             common.Address{0xC0, 0xFF, 0xEE},
		GasLimit:             30_000_000,
		Fork:                 "cancun",
		BlocksPerBatch:       1,
		CommitRetryBaseDelay: time.Millisecond,
		CommitRetryMaxDelay:  10 * time.Millisecond,
	}
	seq := New(cfg, nil, store, pool, state, signer, fakeSubmitter{hash: common.Hash{0xAA}})
	require.NoError(t, seq.RegenerateState(ctx))

	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- seq.Run(runCtx) }()

	require.Eventually(t, func() bool {
		ok, err := engine.ContainsBatch(ctx, 1)
		return err == nil && ok
	}, time.Second, 5*time.Millisecond)

	seq.Shutdown()
	require.ErrorIs(t, <-done, ErrAborted)

	batch, err := engine.GetBatch(ctx, 1, "cancun")
	require.NoError(t, err)
	require.NotNil(t, batch)
	require.Equal(t, uint64(1), batch.FirstBlock)
	require.Equal(t, uint64(1), batch.LastBlock)
	require.Equal(t, uint64(1), batch.NonPrivilegedTransactionsCount)

	commitTx, err := engine.GetCommitTx(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, commitTx)
	require.Equal(t, common.Hash{0xAA}, *commitTx)

	require.False(t, pool.Has(tx.Hash()), "included tx must be removed from the mempool")
}
