// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jit_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/rollup/core/vm"
	"github.com/luxfi/rollup/core/vm/jit"
	"github.com/luxfi/rollup/core/vm/jit/testbackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fibonacciBytecode computes fib(n) from calldata[0..32] into memory[0..32],
// with loop JUMPDESTs at offsets 19 and 25, per spec.md §8 scenario 2.
func fibonacciBytecode() []byte {
	return []byte{
		0x60, 0x00, // 0: PUSH1 0
		0x35,       // 2: CALLDATALOAD
		0x80,       // 3: DUP1
		0x60, 0x02, // 4: PUSH1 2
		0x11,       // 6: GT
		0x15,       // 7: ISZERO
		0x60, 0x13, // 8: PUSH1 19
		0x57, // 10: JUMPI

		0x60, 0x00, // 11: PUSH1 0
		0x52,       // 13: MSTORE
		0x60, 0x20, // 14: PUSH1 32
		0x60, 0x00, // 16: PUSH1 0
		0xf3, // 18: RETURN

		0x5b,       // 19: JUMPDEST
		0x60, 0x01, // 20: PUSH1 1
		0x60, 0x00, // 22: PUSH1 0
		0x91, // 24: SWAP2

		0x5b, // 25: JUMPDEST
		0x81, // 26: DUP2
		0x83, // 27: DUP4
		0x01, // 28: ADD
		0x92, // 29: SWAP3
		0x50, // 30: POP
		0x60, 0x01, // 31: PUSH1 1
		0x90,       // 33: SWAP1
		0x03,       // 34: SUB
		0x91,       // 35: SWAP2
		0x90,       // 36: SWAP1
		0x91,       // 37: SWAP2
		0x80,       // 38: DUP1
		0x60, 0x01, // 39: PUSH1 1
		0x10,       // 41: LT
		0x60, 0x19, // 42: PUSH1 25
		0x57, // 44: JUMPI

		0x50,       // 45: POP
		0x90,       // 46: SWAP1
		0x50,       // 47: POP
		0x60, 0x00, // 48: PUSH1 0
		0x52,       // 50: MSTORE
		0x60, 0x20, // 51: PUSH1 32
		0x60, 0x00, // 53: PUSH1 0
		0xf3, // 55: RETURN
	}
}

func newFibFrame(code []byte, n uint64, gas uint64) (*vm.Frame, *vm.StateHost) {
	host := vm.NewStateHost(vm.BlockContext{GasLimit: 30_000_000}, vm.TxContext{GasPrice: uint256.NewInt(1)})
	input := uint256.NewInt(n).Bytes32()
	f := vm.NewFrame(host, nil, common.Hash{}, code, input[:], common.Address{0xAA}, common.Address{0xBB}, new(uint256.Int), gas, false)
	return f, host
}

var fibonacciValues = []struct{ n, want uint64 }{
	{0, 0}, {1, 1}, {2, 1}, {5, 5}, {10, 55}, {20, 6765},
}

func TestFibonacciInterpreter(t *testing.T) {
	code := fibonacciBytecode()
	for _, tc := range fibonacciValues {
		f, _ := newFibFrame(code, tc.n, 1_000_000)
		res := vm.NewInterpreter().Run(f)
		require.True(t, res.Success, "fib(%d)", tc.n)
		got := new(uint256.Int).SetBytes(res.ReturnData)
		assert.Equal(t, tc.want, got.Uint64(), "fib(%d)", tc.n)
	}
}

// TestFibonacciJITMatchesInterpreter is spec.md §8 scenario 2: compiled
// through the JIT tier via the Dispatcher (using the copy-and-replay test
// backend), results and pre-refund gas must match the plain interpreter.
func TestFibonacciJITMatchesInterpreter(t *testing.T) {
	code := fibonacciBytecode()
	cfg := jit.Config{CompilationThreshold: 2, MaxCacheEntries: 16, MaxBytecodeSize: 24576, MaxValidationRuns: 3}
	dispatcher := jit.NewDispatcher(jit.NewCodeCache(cfg.MaxCacheEntries), jit.NewCounter(), cfg, testbackend.New())

	// Every fib(n) call shares the same contract bytecode (hence the same
	// code hash); warm the counter past the threshold once before asserting
	// per-n equivalence below.
	warmupFrame, warmupHost := newFibFrame(code, fibonacciValues[0].n, 1_000_000)
	_, handled := dispatcher.Run(warmupHost, warmupFrame, "cancun", nil, nil)
	assert.False(t, handled, "below compilation threshold must fall through")
	warmupFrame2, warmupHost2 := newFibFrame(code, fibonacciValues[0].n, 1_000_000)
	_, handled = dispatcher.Run(warmupHost2, warmupFrame2, "cancun", nil, nil)
	require.True(t, handled, "code must be JIT-compiled once past the threshold")

	for _, tc := range fibonacciValues {
		interpFrame, _ := newFibFrame(code, tc.n, 1_000_000)
		interpRes := vm.NewInterpreter().Run(interpFrame)
		require.True(t, interpRes.Success)

		jitFrame, jitHost := newFibFrame(code, tc.n, 1_000_000)
		jitRes, handled := dispatcher.Run(jitHost, jitFrame, "cancun", nil, nil)
		require.True(t, handled, "fib(%d) should be JIT-compiled after warmup", tc.n)
		require.True(t, jitRes.Success)

		gotJIT := new(uint256.Int).SetBytes(jitRes.ReturnData)
		gotInterp := new(uint256.Int).SetBytes(interpRes.ReturnData)
		assert.Equal(t, gotInterp.Uint64(), gotJIT.Uint64(), "fib(%d)", tc.n)
		assert.Equal(t, interpRes.GasUsed+interpRes.GasRefund, jitRes.GasUsed+jitRes.GasRefund, "pre-refund gas must match for fib(%d)", tc.n)
	}
}

func TestDispatcherNoBackendIsNoOp(t *testing.T) {
	cfg := jit.DefaultConfig()
	d := jit.NewDispatcher(jit.NewCodeCache(cfg.MaxCacheEntries), jit.NewCounter(), cfg, nil)
	f, host := newFibFrame(fibonacciBytecode(), 5, 100_000)
	_, handled := d.Run(host, f, "cancun", nil, nil)
	assert.False(t, handled, "Dispatcher with no registered backend must never handle a call")
}
