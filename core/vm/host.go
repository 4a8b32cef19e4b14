// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// BlockContext carries the per-block values opcodes like COINBASE, NUMBER,
// TIMESTAMP and BASEFEE read. Random is carried as well, but no opcode
// handler reads it: 0x44 (PREVRANDAO) has no entry in the opcode table.
type BlockContext struct {
	Coinbase    common.Address
	GasLimit    uint64
	BlockNumber uint64
	Time        uint64
	BaseFee     *uint256.Int
	Random      common.Hash
	ChainID     *uint256.Int
	Fork        string
}

// TxContext carries the per-transaction values ORIGIN, GASPRICE and
// BLOBHASH read.
type TxContext struct {
	Origin     common.Address
	GasPrice   *uint256.Int
	BlobHashes []common.Hash
}

// Host is the capability surface JIT-compiled code and the interpreter both
// read/write VM state through, per spec.md §4.D. It exposes nothing beyond
// what the interpreter itself would observe, and preserves the
// interpreter's gas semantics bit-for-bit (pre-refund): accounting (which
// of these operations is warm/cold, whether a write is a no-op) is done by
// the interpreter's opcode handlers using the booleans this interface
// returns, not hidden inside the host.
type Host interface {
	BlockContext() BlockContext
	TxContext() TxContext

	// AccessAccount marks addr warm for EIP-2929 purposes and reports
	// whether it was already warm before this call.
	AccessAccount(addr common.Address) (wasWarm bool)
	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int)
	SubBalance(addr common.Address, amount *uint256.Int)
	GetNonce(addr common.Address) uint64
	SetNonce(addr common.Address, nonce uint64)
	GetCode(addr common.Address) []byte
	SetCode(addr common.Address, code []byte)
	GetCodeHash(addr common.Address) common.Hash

	// AccessSlot marks (addr,key) warm and reports whether it was already
	// warm, mirroring AccessAccount for storage slots.
	AccessSlot(addr common.Address, key common.Hash) (wasWarm bool)
	GetState(addr common.Address, key common.Hash) common.Hash
	// SetState writes value and returns the slot's original value (as of
	// transaction start) for SSTORE gas/refund computation.
	SetState(addr common.Address, key common.Hash, value common.Hash) (original common.Hash)

	GetTransientState(addr common.Address, key common.Hash) common.Hash
	SetTransientState(addr common.Address, key common.Hash, value common.Hash)

	EmitLog(addr common.Address, topics []common.Hash, data []byte)
	SelfDestruct(addr common.Address, beneficiary common.Address)

	Snapshot() int
	RevertToSnapshot(id int)

	// RecordStorageRead/Write/AccountRead/BalanceChange feed the
	// EIP-7928 block access list (4.E). RecordStorageRead MUST be called
	// even for a no-op SSTORE (spec.md §4.E step 7 / §8 scenario 5).
	RecordStorageRead(addr common.Address, key common.Hash)
	RecordStorageWrite(addr common.Address, key common.Hash, newValue common.Hash)
	RecordAccountRead(addr common.Address)
	RecordBalanceChange(addr common.Address, newBalance *uint256.Int)
}
