// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/crypto"
	"github.com/luxfi/geth/rlp"
)

// Bloom is a 2048-bit log bloom filter, the same layout go-ethereum uses.
type Bloom [256]byte

// BlockNonce is the 64-bit PoW nonce field Header carries for wire
// compatibility; the rollup never mines, so it is always zero.
type BlockNonce [8]byte

// Header is this rollup's block header: the standard Ethereum header fields
// plus the L2-specific extensions (ExtDataHash, ExtDataGasUsed,
// BlockGasCost) the teacher's C-Chain header carries, and the EIP-4844/4788
// fields (BlobGasUsed, ExcessBlobGas, ParentBeaconRoot) spec.md's blob
// handling needs.
type Header struct {
	ParentHash  common.Hash
	UncleHash   common.Hash
	Coinbase    common.Address
	Root        common.Hash
	TxHash      common.Hash
	ReceiptHash common.Hash
	Bloom       Bloom
	Difficulty  *big.Int
	Number      *big.Int
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	MixDigest   common.Hash
	Nonce       BlockNonce
	BaseFee     *big.Int

	ExtDataHash    common.Hash
	ExtDataGasUsed *big.Int
	BlockGasCost   *big.Int

	BlobGasUsed      *uint64      `rlp:"optional"`
	ExcessBlobGas    *uint64      `rlp:"optional"`
	ParentBeaconRoot *common.Hash `rlp:"optional"`
}

// Hash returns the keccak256 of the header's canonical RLP encoding, the
// block hash wire messages and the guest program identify blocks by.
func (h *Header) Hash() common.Hash {
	enc, err := rlp.EncodeToBytes(h)
	if err != nil {
		panic(err) // every field is RLP-encodable by construction
	}
	return common.BytesToHash(crypto.Keccak256(enc))
}

// Block pairs a Header with its transaction and uncle lists. Body fields are
// set once via WithBody and never mutated afterward, matching go-ethereum's
// immutable-block convention.
type Block struct {
	header       *Header
	transactions []*Transaction
	uncles       []*Header
}

// NewBlockWithHeader starts a Block with only its header populated; call
// WithBody to attach transactions/uncles.
func NewBlockWithHeader(h *Header) *Block {
	return &Block{header: h}
}

// WithBody returns a copy of b with the given transactions/uncles attached.
func (b *Block) WithBody(transactions []*Transaction, uncles []*Header) *Block {
	return &Block{header: b.header, transactions: transactions, uncles: uncles}
}

func (b *Block) Header() *Header              { return b.header }
func (b *Block) Transactions() []*Transaction { return b.transactions }
func (b *Block) Uncles() []*Header            { return b.uncles }
func (b *Block) Hash() common.Hash            { return b.header.Hash() }
func (b *Block) NumberU64() uint64 {
	if b.header.Number == nil {
		return 0
	}
	return b.header.Number.Uint64()
}
