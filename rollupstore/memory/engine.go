// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package memory is an in-memory rollupstore.Engine: a mutex-protected set
// of maps, suitable for tests and single-process development nodes. It is
// not durable across restarts.
package memory

import (
	"context"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/rollupstore"
)

type proverInputKey struct {
	batch   uint64
	version string
}

type proofKey struct {
	batch      uint64
	proverType types.ProverType
}

// Engine is an in-memory rollupstore.Engine.
type Engine struct {
	mu sync.RWMutex

	batches      map[uint64]*types.BatchRecord
	blockToBatch map[uint64]uint64

	proverInputs map[proverInputKey]*types.ProverInputData
	proofs       map[proofKey]*types.BatchProof
	signatures   map[uint64][]byte

	feeConfigs      map[uint64]types.FeeConfig
	programIDs      map[uint64]common.Hash
	accountUpdates  map[uint64][]types.BalanceDiff
	commitTxs       map[uint64]common.Hash
	verifyTxs       map[uint64]common.Hash

	operationsCounts [3]uint64

	latestSentBatchProof *uint64
}

// New returns an empty in-memory engine. Init must still be called before
// GetBatch(0, ...) returns anything.
func New() *Engine {
	return &Engine{
		batches:        make(map[uint64]*types.BatchRecord),
		blockToBatch:   make(map[uint64]uint64),
		proverInputs:   make(map[proverInputKey]*types.ProverInputData),
		proofs:         make(map[proofKey]*types.BatchProof),
		signatures:     make(map[uint64][]byte),
		feeConfigs:     make(map[uint64]types.FeeConfig),
		programIDs:     make(map[uint64]common.Hash),
		accountUpdates: make(map[uint64][]types.BalanceDiff),
		commitTxs:      make(map[uint64]common.Hash),
		verifyTxs:      make(map[uint64]common.Hash),
	}
}

var _ rollupstore.Engine = (*Engine)(nil)

func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.batches[0]; !ok {
		genesis := types.GenesisBatch()
		e.batches[0] = genesis
		e.blockToBatch[0] = 0
	}
	if e.latestSentBatchProof == nil {
		zero := uint64(0)
		e.latestSentBatchProof = &zero
	}
	return nil
}

func (e *Engine) latestBatchNumberLocked() (uint64, bool) {
	if len(e.batches) == 0 {
		return 0, false
	}
	var max uint64
	found := false
	for n := range e.batches {
		if !found || n > max {
			max, found = n, true
		}
	}
	return max, found
}

func (e *Engine) sealBatchLocked(batch *types.BatchRecord) error {
	latest, ok := e.latestBatchNumberLocked()
	var prev *types.BatchRecord
	if ok {
		prev = e.batches[latest]
	}
	if !batch.ContiguousWith(prev) {
		return rollupstore.ErrBatchNotContiguous
	}
	cp := *batch
	e.batches[batch.Number] = &cp
	for b := batch.FirstBlock; b <= batch.LastBlock; b++ {
		e.blockToBatch[b] = batch.Number
	}
	return nil
}

func (e *Engine) SealBatch(ctx context.Context, batch *types.BatchRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sealBatchLocked(batch)
}

// SealBatchWithProverInput performs both writes under a single critical
// section: a reader can never observe the batch sealed without its prover
// input, matching the atomicity the sql.Engine provides via a real SQL
// transaction.
func (e *Engine) SealBatchWithProverInput(ctx context.Context, batch *types.BatchRecord, input *types.ProverInputData) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.sealBatchLocked(batch); err != nil {
		return err
	}
	cp := *input
	e.proverInputs[proverInputKey{batch: input.BatchNumber, version: input.ProverVersion}] = &cp
	return nil
}

func (e *Engine) GetBatch(ctx context.Context, batchNumber uint64, fork string) (*types.BatchRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.batches[batchNumber]
	if !ok {
		return nil, nil
	}
	cp := *b
	if cp.BlobsBundle != nil {
		bundle := *cp.BlobsBundle
		bundle.Version = types.WrapperVersionForFork(fork)
		cp.BlobsBundle = &bundle
	}
	return &cp, nil
}

func (e *Engine) ContainsBatch(ctx context.Context, batchNumber uint64) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.batches[batchNumber]
	return ok, nil
}

func (e *Engine) LatestBatchNumber(ctx context.Context) (uint64, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.latestBatchNumberLocked()
	return n, ok, nil
}

func (e *Engine) BatchNumberByBlock(ctx context.Context, blockNumber uint64) (uint64, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.blockToBatch[blockNumber]
	return n, ok, nil
}

// RevertToBatch removes batch n+1 and everything after it. Proofs and
// signatures for the removed batches are left in place (the interface does
// not require their removal) but become unreachable through GetBatchProof/
// GetBatchSignature since both check ContainsBatch first.
func (e *Engine) RevertToBatch(ctx context.Context, n uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var cutoffBlock uint64
	if b, ok := e.batches[n]; ok {
		cutoffBlock = b.LastBlock
	}

	for num, b := range e.batches {
		if num <= n {
			continue
		}
		for block := b.FirstBlock; block <= b.LastBlock; block++ {
			delete(e.blockToBatch, block)
		}
		delete(e.batches, num)
		delete(e.commitTxs, num)
		delete(e.verifyTxs, num)
		delete(e.programIDs, num)
	}
	for key := range e.proverInputs {
		if key.batch > n {
			delete(e.proverInputs, key)
		}
	}
	for block := range e.feeConfigs {
		if block > cutoffBlock {
			delete(e.feeConfigs, block)
		}
	}
	for block := range e.accountUpdates {
		if block > cutoffBlock {
			delete(e.accountUpdates, block)
		}
	}
	return nil
}

// UpdateOperationsCount mutates the counters in place under the engine's
// lock, never through a copied-out local snapshot, so concurrent increments
// are never silently dropped.
func (e *Engine) UpdateOperationsCount(ctx context.Context, txInc, privilegedTxInc, messagesInc uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.operationsCounts[0] += txInc
	e.operationsCounts[1] += privilegedTxInc
	e.operationsCounts[2] += messagesInc
	return nil
}

func (e *Engine) OperationsCount(ctx context.Context) (uint64, uint64, uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.operationsCounts[0], e.operationsCounts[1], e.operationsCounts[2], nil
}

func (e *Engine) GetProverInput(ctx context.Context, batchNumber uint64, proverVersion string) (*types.ProverInputData, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	in, ok := e.proverInputs[proverInputKey{batch: batchNumber, version: proverVersion}]
	if !ok {
		return nil, nil
	}
	cp := *in
	return &cp, nil
}

func (e *Engine) StoreBatchProof(ctx context.Context, proof *types.BatchProof) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *proof
	e.proofs[proofKey{batch: proof.Batch, proverType: proof.Type}] = &cp
	return nil
}

func (e *Engine) GetBatchProof(ctx context.Context, batchNumber uint64, proverType types.ProverType) (*types.BatchProof, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.batches[batchNumber]; !ok {
		return nil, nil
	}
	p, ok := e.proofs[proofKey{batch: batchNumber, proverType: proverType}]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (e *Engine) StoreBatchSignature(ctx context.Context, batchNumber uint64, signature []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]byte, len(signature))
	copy(cp, signature)
	e.signatures[batchNumber] = cp
	return nil
}

func (e *Engine) GetBatchSignature(ctx context.Context, batchNumber uint64) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.batches[batchNumber]; !ok {
		return nil, nil
	}
	sig, ok := e.signatures[batchNumber]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(sig))
	copy(cp, sig)
	return cp, nil
}

func (e *Engine) StoreFeeConfig(ctx context.Context, blockNumber uint64, fc types.FeeConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feeConfigs[blockNumber] = fc
	return nil
}

func (e *Engine) GetFeeConfig(ctx context.Context, blockNumber uint64) (*types.FeeConfig, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fc, ok := e.feeConfigs[blockNumber]
	if !ok {
		return nil, nil
	}
	return &fc, nil
}

func (e *Engine) StoreProgramIDByBatch(ctx context.Context, batchNumber uint64, programID common.Hash) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.programIDs[batchNumber] = programID
	return nil
}

func (e *Engine) GetProgramIDByBatch(ctx context.Context, batchNumber uint64) (*common.Hash, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.programIDs[batchNumber]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (e *Engine) StoreAccountUpdatesByBlock(ctx context.Context, blockNumber uint64, diffs []types.BalanceDiff) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]types.BalanceDiff, len(diffs))
	copy(cp, diffs)
	e.accountUpdates[blockNumber] = cp
	return nil
}

func (e *Engine) GetAccountUpdatesByBlock(ctx context.Context, blockNumber uint64) ([]types.BalanceDiff, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	diffs, ok := e.accountUpdates[blockNumber]
	if !ok {
		return nil, nil
	}
	cp := make([]types.BalanceDiff, len(diffs))
	copy(cp, diffs)
	return cp, nil
}

func (e *Engine) SetCommitTx(ctx context.Context, batchNumber uint64, txHash common.Hash) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commitTxs[batchNumber] = txHash
	return nil
}

func (e *Engine) GetCommitTx(ctx context.Context, batchNumber uint64) (*common.Hash, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.commitTxs[batchNumber]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (e *Engine) SetVerifyTx(ctx context.Context, batchNumber uint64, txHash common.Hash) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.verifyTxs[batchNumber] = txHash
	return nil
}

func (e *Engine) GetVerifyTx(ctx context.Context, batchNumber uint64) (*common.Hash, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.verifyTxs[batchNumber]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (e *Engine) LatestSentBatchProof(ctx context.Context) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.latestSentBatchProof == nil {
		return 0, rollupstore.ErrNotInitialized
	}
	return *e.latestSentBatchProof, nil
}

func (e *Engine) SetLatestSentBatchProof(ctx context.Context, batchNumber uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latestSentBatchProof = &batchNumber
	return nil
}
