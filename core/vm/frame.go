// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// CallKind distinguishes the four external-call opcodes for the Caller
// dispatch hook.
type CallKind int

const (
	CallKindCall CallKind = iota
	CallKindCallCode
	CallKindDelegateCall
	CallKindStaticCall
)

// CreateKindOp distinguishes CREATE from CREATE2.
type CreateKindOp int

const (
	CreateKindCreate CreateKindOp = iota
	CreateKindCreate2
)

// Caller is implemented by the block executor (4.E) to drive sub-calls
// through the normal execution pipeline -- which may itself dispatch JIT
// (4.D) -- recursively. The interpreter never executes a sub-call inline;
// it always calls back out through this interface, matching the suspend/
// resume composition spec.md §4.D describes.
type Caller interface {
	Call(frame *Frame, kind CallKind, addr common.Address, value *uint256.Int, input []byte, gas uint64, static bool) (ret []byte, gasLeft uint64, success bool, err error)
	Create(frame *Frame, kind CreateKindOp, value *uint256.Int, initcode []byte, gas uint64, salt *uint256.Int) (ret []byte, gasLeft uint64, addr common.Address, success bool, err error)
	BlockHash(number uint64) common.Hash
}

// Frame is one call/create activation record: the stack, the memory view,
// the executing code, and enough context for every opcode handler.
type Frame struct {
	Host  Host
	dispatcher Caller

	CodeHash common.Hash
	Code     []byte
	Input    []byte

	Address     common.Address
	CallerAddr  common.Address
	Value       *uint256.Int
	Gas         uint64
	GasUsed     uint64
	GasRefund   uint64
	Depth       int
	Static      bool

	stack  *Stack
	memory *Memory

	pc         uint64
	stopped    bool
	reverted   bool
	returnData []byte

	validJumpdests map[uint64]bool
}

// NewFrame builds the outermost frame for a transaction.
func NewFrame(host Host, caller Caller, codeHash common.Hash, code, input []byte, address, from common.Address, value *uint256.Int, gas uint64, static bool) *Frame {
	return &Frame{
		Host:       host,
		dispatcher:    caller,
		CodeHash:   codeHash,
		Code:       code,
		Input:      input,
		Address:    address,
		CallerAddr: from,
		Value:      value,
		Gas:        gas,
		Static:     static,
		stack:      newStack(),
		memory:     newRootMemory(),
	}
}

// Sub builds a child frame sharing the parent's memory buffer, per the
// spec's memory-sharing strategy: base = parent.len.
func (f *Frame) Sub(codeHash common.Hash, code, input []byte, address, from common.Address, value *uint256.Int, gas uint64, static bool) *Frame {
	return &Frame{
		Host:       f.Host,
		dispatcher:    f.dispatcher,
		CodeHash:   codeHash,
		Code:       code,
		Input:      input,
		Address:    address,
		CallerAddr: from,
		Value:      value,
		Gas:        gas,
		Depth:      f.Depth + 1,
		Static:     static || f.Static,
		stack:      newStack(),
		memory:     f.memory.child(),
	}
}

// Release zeroes this frame's memory segment on return, per spec.md §9.
func (f *Frame) Release() { f.memory.release() }

func (f *Frame) jumpdests() map[uint64]bool {
	if f.validJumpdests != nil {
		return f.validJumpdests
	}
	f.validJumpdests = analyzeJumpdests(f.Code)
	return f.validJumpdests
}

// analyzeJumpdests walks the bytecode once, skipping PUSH immediates, and
// records every byte offset holding a JUMPDEST as a valid jump target.
func analyzeJumpdests(code []byte) map[uint64]bool {
	dests := make(map[uint64]bool)
	for i := 0; i < len(code); {
		op := OpCode(code[i])
		if op == JUMPDEST {
			dests[uint64(i)] = true
		}
		if op.IsPush() {
			i += 1 + op.PushSize()
		} else {
			i++
		}
	}
	return dests
}
