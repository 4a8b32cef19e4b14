// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/crypto"
)

// Receipt status codes, matching go-ethereum's convention.
const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

// Receipt is block execution's per-transaction output record (spec.md §4.E
// step 6): status, cumulative/own gas used, the event log bloom, the
// contract address for a successful creation, and the EIP-4844 blob
// accounting fields a blob-carrying transaction contributes.
type Receipt struct {
	TxHash  common.Hash
	Status  uint64
	Type    uint8

	CumulativeGasUsed uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int

	Bloom           Bloom
	Logs            []*Log
	ContractAddress *common.Address

	BlobGasUsed  uint64
	BlobGasPrice *big.Int

	BlockNumber      uint64
	TransactionIndex uint
}

// Log is a single EVM event log as recorded in a Receipt; distinct from
// core/vm.Log, which is the interpreter's internal representation before
// the block/tx/index fields below are known.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte

	BlockNumber uint64
	TxHash      common.Hash
	TxIndex     uint
	Index       uint
}

// bloomFromLogs computes a Receipt's log bloom the same way go-ethereum
// does: OR in Keccak-based bit positions for the address and every topic of
// every log.
func bloomFromLogs(logs []*Log) Bloom {
	var b Bloom
	for _, l := range logs {
		b.add(l.Address.Bytes())
		for _, t := range l.Topics {
			b.add(t.Bytes())
		}
	}
	return b
}

func (b *Bloom) add(data []byte) {
	h := crypto.Keccak256(data)
	for i := 0; i < 3; i++ {
		bit := (uint(h[2*i])<<8 | uint(h[2*i+1])) & 2047
		b[256-1-bit/8] |= 1 << (bit % 8)
	}
}
