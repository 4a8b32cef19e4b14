// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"github.com/luxfi/geth/common"
)

// L2InMessageHash pairs an L1-originated message's block number with the
// rolling hash recorded for that block.
type L2InMessageHash struct {
	BlockNumber uint64
	Hash        common.Hash
}

// ProverType tags which proving backend a BatchProof was produced by.
// Concrete proof backends (SP1/RISC0/zisk/openvm) are out of scope per
// spec.md §1; ProverType is kept as an opaque string so the store can key
// proofs without depending on any one of them.
type ProverType string

// BatchRecord is the unit of sequencer commitment: a contiguous range of L2
// blocks sealed and anchored to L1.
type BatchRecord struct {
	Number     uint64
	FirstBlock uint64
	LastBlock  uint64 // inclusive

	StateRoot common.Hash

	L1InMessagesRollingHash common.Hash
	L2InMessageRollingHashes []L2InMessageHash
	L1OutMessageHashes       []common.Hash

	NonPrivilegedTransactionsCount uint64
	BalanceDiffs                   []BalanceDiff

	BlobsBundle *BlobsBundle

	CommitTx *common.Hash
	VerifyTx *common.Hash
}

// ContiguousWith reports whether `b` immediately follows `prev`: prev's
// last_block + 1 == b.first_block, per the batch-contiguity invariant.
func (b *BatchRecord) ContiguousWith(prev *BatchRecord) bool {
	if prev == nil {
		return b.Number == 0 && b.FirstBlock == 0 && b.LastBlock == 0
	}
	return b.Number == prev.Number+1 && b.FirstBlock == prev.LastBlock+1
}

// GenesisBatch builds batch 0: first=last=0, zero state root, as mandated by
// the rollup store's init() contract.
func GenesisBatch() *BatchRecord {
	return &BatchRecord{
		Number:     0,
		FirstBlock: 0,
		LastBlock:  0,
		StateRoot:  common.Hash{},
	}
}

// ProverInputData is the full witness a prover consumes: blocks, execution
// witness tries, fee configs, blob commitment, blob proof. It is stored
// keyed by (batch_number, prover_version) so multiple provers can coexist.
type ProverInputData struct {
	BatchNumber    uint64
	ProverVersion  string
	Blocks         [][]byte // canonical block encodings
	WitnessTries   [][]byte
	FeeConfigs     []FeeConfig
	BlobCommitment []byte
	BlobProof      []byte
}

// BatchProof is a prover-type-tagged opaque artifact for a given batch.
type BatchProof struct {
	Type  ProverType
	Batch uint64
	Proof []byte
}
