// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package jit implements the second execution tier described in spec.md
// §4.D: a hot-bytecode cache, an execution counter, a bytecode analyzer,
// and a Dispatcher that composes JIT execution with interpreter sub-calls
// via a suspend/resume protocol. The interpreter (core/vm) remains
// authoritative; without a registered Backend, Dispatch is a provable
// no-op and every call falls straight through to the interpreter.
package jit

import (
	"github.com/luxfi/geth/common"
	"github.com/luxfi/rollup/core/vm"
)

// AnalyzedBytecode is the bytecode analyzer's output: basic-block starts,
// a raw opcode count, and whether the code can make an external call --
// everything the Backend needs to decide how (or whether) to compile.
type AnalyzedBytecode struct {
	Hash             common.Hash
	Code             []byte
	BasicBlockStarts []uint64
	OpcodeCount      int
	HasExternalCalls bool
}

// Analyze walks code once, skipping PUSH immediates, recording the start of
// every basic block: offset 0 begins one, and so does the instruction
// following each JUMPDEST, JUMP, JUMPI, STOP, RETURN, REVERT, SELFDESTRUCT
// or INVALID. A JUMPDEST is itself recorded as a start only when it follows
// one of those.
func Analyze(hash common.Hash, code []byte) AnalyzedBytecode {
	a := AnalyzedBytecode{Hash: hash, Code: code}
	blockStart := true
	for i := 0; i < len(code); {
		op := vm.OpCode(code[i])
		a.OpcodeCount++
		if blockStart {
			a.BasicBlockStarts = append(a.BasicBlockStarts, uint64(i))
			blockStart = false
		}
		if op.IsExternalCall() {
			a.HasExternalCalls = true
		}
		if op.IsBlockBoundary() {
			blockStart = true
		}
		if op.IsPush() {
			i += 1 + op.PushSize()
		} else {
			i++
		}
	}
	return a
}

// BasicBlockCount reports the number of basic blocks found by Analyze.
func (a AnalyzedBytecode) BasicBlockCount() int { return len(a.BasicBlockStarts) }
