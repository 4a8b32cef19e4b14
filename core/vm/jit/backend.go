// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jit

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/rollup/core/vm"
)

// SubCallDescriptor is everything the VM needs to drive a suspended JIT
// frame's sub-call through the normal execution pipeline -- which may
// itself dispatch JIT, recursively -- before resuming.
type SubCallDescriptor struct {
	Kind     vm.CallKind
	IsCreate bool
	CreateKind vm.CreateKindOp
	Addr     common.Address
	Value    *uint256.Int
	Input    []byte
	Gas      uint64
	Static   bool
}

// OutcomeKind discriminates the four JIT execution outcomes spec.md §4.D
// defines.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRevert
	OutcomeSuspended
	OutcomeHalt
)

// Outcome is the result of running (or resuming) a JIT frame.
type Outcome struct {
	Kind OutcomeKind

	Output  []byte
	GasUsed uint64
	GasRefund uint64

	// Suspended fields.
	ResumeState interface{}
	SubCall     SubCallDescriptor

	// Halt fields.
	Err error
}

// Backend compiles analyzed bytecode and executes (or resumes) it against a
// Host. A backend is registered at process startup; without one, the
// Dispatcher never attempts compilation and every call falls through to
// the interpreter untouched, per spec.md §4.D/§9.
type Backend interface {
	// Compile produces a CompiledCode value for the given analyzed
	// bytecode, or an error if this backend declines to compile it (too
	// large, unsupported opcode, etc).
	Compile(code AnalyzedBytecode) (CompiledCode, error)

	// Execute runs compiled code against host/frame to completion or
	// suspension.
	Execute(compiled CompiledCode, host vm.Host, frame *vm.Frame) Outcome

	// Resume continues a previously Suspended outcome with the sub-call's
	// result.
	Resume(resumeState interface{}, subCallReturnData []byte, subCallGasLeft uint64, subCallSuccess bool, host vm.Host, frame *vm.Frame) Outcome
}
