// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFrame(code []byte, gas uint64) (*Frame, *StateHost) {
	host := NewStateHost(BlockContext{GasLimit: 30_000_000, ChainID: uint256.NewInt(1)}, TxContext{GasPrice: uint256.NewInt(1)})
	f := NewFrame(host, nil, common.Hash{}, code, nil, common.Address{1}, common.Address{2}, new(uint256.Int), gas, false)
	return f, host
}

// TestSStoreZeroToNonzero is spec scenario 3: PUSH1 0x42, PUSH1 0x00, SSTORE,
// STOP on an empty-storage account must cost exactly 20000 (set) + 2100
// (cold) gas with zero refund.
func TestSStoreZeroToNonzero(t *testing.T) {
	code := []byte{byte(PUSH1), 0x42, byte(PUSH1), 0x00, byte(SSTORE), byte(STOP)}
	f, host := newTestFrame(code, 100_000)

	res := NewInterpreter().Run(f)
	require.True(t, res.Success)
	assert.Equal(t, uint64(20000+2100+3+3), res.GasUsed)
	assert.Equal(t, uint64(0), res.GasRefund)

	got := host.GetState(common.Address{1}, common.Hash{})
	assert.Equal(t, common.BytesToHash([]byte{0x42}), got)
}

// TestBalNoOpSStore is spec scenario 5: storing the same value a slot
// already holds must still record a storage read with no storage change.
func TestBalNoOpSStore(t *testing.T) {
	code := []byte{byte(PUSH1), 0x05, byte(PUSH1), 0x00, byte(SSTORE), byte(STOP)}
	f, host := newTestFrame(code, 100_000)
	host.SetAccountForTesting(common.Address{1}, 0, new(uint256.Int), map[common.Hash]common.Hash{
		{}: common.BytesToHash([]byte{0x05}),
	})

	res := NewInterpreter().Run(f)
	require.True(t, res.Success)

	_, read := host.StorageReads[common.Address{1}][common.Hash{}]
	assert.True(t, read, "no-op SSTORE must still record the implicit read")
	assert.Empty(t, host.StorageWrites[common.Address{1}], "no-op SSTORE must not record a storage change")
}

func TestArithmeticAddMulStop(t *testing.T) {
	// PUSH1 2 PUSH1 3 ADD PUSH1 4 MUL STOP => (2+3)*4 = 20, left on stack
	code := []byte{
		byte(PUSH1), 2,
		byte(PUSH1), 3,
		byte(ADD),
		byte(PUSH1), 4,
		byte(MUL),
		byte(STOP),
	}
	f, _ := newTestFrame(code, 100_000)
	res := NewInterpreter().Run(f)
	require.True(t, res.Success)
	top, err := f.stack.peek(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), top.Uint64())
}

func TestOutOfGasHalts(t *testing.T) {
	code := []byte{byte(PUSH1), 1, byte(PUSH1), 2, byte(ADD), byte(STOP)}
	f, _ := newTestFrame(code, 2) // not enough for even the first PUSH1
	res := NewInterpreter().Run(f)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrOutOfGas)
}

func TestRevertPreservesReturnDataAndState(t *testing.T) {
	// PUSH1 0x42 PUSH1 0x00 SSTORE PUSH1 0 PUSH1 0 REVERT
	code := []byte{
		byte(PUSH1), 0x42, byte(PUSH1), 0x00, byte(SSTORE),
		byte(PUSH1), 0, byte(PUSH1), 0, byte(REVERT),
	}
	f, host := newTestFrame(code, 100_000)
	res := NewInterpreter().Run(f)
	assert.True(t, res.Reverted)
	assert.ErrorIs(t, res.Err, ErrExecutionReverted)

	got := host.GetState(common.Address{1}, common.Hash{})
	assert.Equal(t, common.Hash{}, got, "REVERT must undo the SSTORE via the journal")
}

func TestInvalidJumpDestination(t *testing.T) {
	code := []byte{byte(PUSH1), 0x05, byte(JUMP)} // 0x05 is not a JUMPDEST
	f, _ := newTestFrame(code, 100_000)
	res := NewInterpreter().Run(f)
	assert.ErrorIs(t, res.Err, ErrInvalidJump)
}
