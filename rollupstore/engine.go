// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rollupstore is the rollup store (spec.md §4.A): the durable record
// of sealed batches, their prover inputs and proofs, and the bookkeeping a
// sequencer needs to resume safely after a restart or roll back after a
// reorg. Engine is the storage-backend-agnostic contract; rollupstore/memory
// and rollupstore/sql are its two implementations.
package rollupstore

import (
	"context"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/rollup/core/types"
)

// Engine is implemented by every rollup store backend. All lookups return a
// nil pointer (or false) on a miss, never an error — a missing batch is an
// expected, ordinary outcome, not a storage failure.
type Engine interface {
	// Init seals batch 0 (types.GenesisBatch) if no batch exists yet, and
	// sets LatestSentBatchProof to 0 if it has never been set. Init is
	// idempotent: calling it again once batch 0 exists is a no-op.
	Init(ctx context.Context) error

	// SealBatch durably records a newly-produced batch. The batch MUST be
	// contiguous with the latest sealed batch (types.BatchRecord.
	// ContiguousWith); implementations return ErrBatchNotContiguous
	// otherwise.
	SealBatch(ctx context.Context, batch *types.BatchRecord) error

	// SealBatchWithProverInput seals a batch and stores its prover input
	// atomically: a crash between the two writes must never leave a batch
	// sealed without its prover input, or vice versa.
	SealBatchWithProverInput(ctx context.Context, batch *types.BatchRecord, input *types.ProverInputData) error

	// GetBatch reconstructs a sealed batch. The BlobsBundle's wrapper
	// version is set according to fork (types.WrapperVersionForFork) since
	// the wire form differs across forks even though the stored bytes do
	// not. Returns (nil, nil) if batchNumber was never sealed, or was
	// removed by a later RevertToBatch.
	GetBatch(ctx context.Context, batchNumber uint64, fork string) (*types.BatchRecord, error)

	// ContainsBatch reports whether batchNumber is currently sealed.
	ContainsBatch(ctx context.Context, batchNumber uint64) (bool, error)

	// LatestBatchNumber returns the highest sealed batch number. ok is
	// false only before Init has ever run.
	LatestBatchNumber(ctx context.Context) (number uint64, ok bool, err error)

	// BatchNumberByBlock maps an L2 block number to the batch that
	// contains it.
	BatchNumberByBlock(ctx context.Context, blockNumber uint64) (batchNumber uint64, ok bool, err error)

	// RevertToBatch removes batch n+1 and everything after it: the batch
	// records themselves, the block-to-batch mapping, prover inputs, fee
	// configs, and program IDs keyed to the removed batches/blocks.
	// Proofs and signatures for removed batches are not required to be
	// deleted, but MUST never again be returned by GetBatchProof/
	// GetBatchSignature once the owning batch is gone (see ContainsBatch).
	RevertToBatch(ctx context.Context, n uint64) error

	// UpdateOperationsCount adds to the running (transactions, privileged
	// transactions, L1->L2 messages) counters. Increments MUST be
	// persisted immediately; implementations must not read-modify-write
	// through a snapshot that silently drops concurrent increments.
	UpdateOperationsCount(ctx context.Context, txInc, privilegedTxInc, messagesInc uint64) error

	// OperationsCount returns the current (transactions, privileged
	// transactions, L1->L2 messages) counters.
	OperationsCount(ctx context.Context) (txs, privilegedTxs, messages uint64, err error)

	// GetProverInput returns the prover input stored for (batchNumber,
	// proverVersion), or (nil, nil) if none was stored.
	GetProverInput(ctx context.Context, batchNumber uint64, proverVersion string) (*types.ProverInputData, error)

	// StoreBatchProof records a proof for a batch, keyed additionally by
	// proof type so multiple proving backends can coexist.
	StoreBatchProof(ctx context.Context, proof *types.BatchProof) error

	// GetBatchProof returns the proof stored for (batchNumber, proverType),
	// or (nil, nil) if none was stored.
	GetBatchProof(ctx context.Context, batchNumber uint64, proverType types.ProverType) (*types.BatchProof, error)

	// StoreBatchSignature records the sequencer's signature over a sealed
	// batch (used by followers to verify batch provenance before applying
	// it).
	StoreBatchSignature(ctx context.Context, batchNumber uint64, signature []byte) error

	// GetBatchSignature returns the signature stored for batchNumber, or
	// (nil, nil) if none was stored.
	GetBatchSignature(ctx context.Context, batchNumber uint64) ([]byte, error)

	// StoreFeeConfig records the fee configuration in effect for a given
	// L2 block (4.E block execution reads this back to run
	// distributeFees).
	StoreFeeConfig(ctx context.Context, blockNumber uint64, fc types.FeeConfig) error

	// GetFeeConfig returns the fee configuration for blockNumber, or (nil,
	// nil) if none was stored.
	GetFeeConfig(ctx context.Context, blockNumber uint64) (*types.FeeConfig, error)

	// StoreProgramIDByBatch records which guest-program ID (4.H) proved a
	// batch.
	StoreProgramIDByBatch(ctx context.Context, batchNumber uint64, programID common.Hash) error

	// GetProgramIDByBatch returns the program ID for batchNumber, or (nil,
	// nil) if none was stored.
	GetProgramIDByBatch(ctx context.Context, batchNumber uint64) (*common.Hash, error)

	// StoreAccountUpdatesByBlock records the per-block balance diffs
	// produced by block execution, for later batch-level reconciliation.
	StoreAccountUpdatesByBlock(ctx context.Context, blockNumber uint64, diffs []types.BalanceDiff) error

	// GetAccountUpdatesByBlock returns the balance diffs stored for
	// blockNumber.
	GetAccountUpdatesByBlock(ctx context.Context, blockNumber uint64) ([]types.BalanceDiff, error)

	// SetCommitTx records the L1 transaction hash that committed a batch.
	SetCommitTx(ctx context.Context, batchNumber uint64, txHash common.Hash) error

	// GetCommitTx returns the commit transaction hash for batchNumber, or
	// (nil, nil) if none was recorded.
	GetCommitTx(ctx context.Context, batchNumber uint64) (*common.Hash, error)

	// SetVerifyTx records the L1 transaction hash that verified (proved)
	// a batch.
	SetVerifyTx(ctx context.Context, batchNumber uint64, txHash common.Hash) error

	// GetVerifyTx returns the verify transaction hash for batchNumber, or
	// (nil, nil) if none was recorded.
	GetVerifyTx(ctx context.Context, batchNumber uint64) (*common.Hash, error)

	// LatestSentBatchProof returns the highest batch number whose proof
	// has been sent to L1.
	LatestSentBatchProof(ctx context.Context) (uint64, error)

	// SetLatestSentBatchProof updates the highest batch number whose proof
	// has been sent to L1.
	SetLatestSentBatchProof(ctx context.Context, batchNumber uint64) error
}
