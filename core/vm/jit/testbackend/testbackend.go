// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package testbackend provides a trivial copy-and-replay JIT Backend used
// only by tests. No example repo or ecosystem library in this module's
// dependency pack implements EVM-to-native-code generation in Go (see
// DESIGN.md) -- this backend does not compile anything; it "executes" by
// replaying the same bytecode through the interpreter it is meant to race
// against, which is sufficient to exercise the Dispatcher's cache,
// counter, and suspend/resume/differential-validation plumbing without a
// real code generator.
package testbackend

import (
	"sync"

	"github.com/luxfi/rollup/core/vm"
	"github.com/luxfi/rollup/core/vm/jit"
)

// resumeState is pooled to demonstrate the thread-local reuse spec.md §4.D
// recommends for recursive-call hot paths; the pool is capped implicitly by
// sync.Pool's GC-driven eviction.
type resumeState struct {
	frame *vm.Frame
}

var resumeStatePool = sync.Pool{New: func() interface{} { return &resumeState{} }}

// Backend is a Backend implementation that never actually compiles code: it
// always "succeeds" at Compile, and Execute/Resume simply run the
// interpreter directly, so a Dispatcher wired to it produces outcomes
// bit-identical to the interpreter by construction -- useful for testing
// the dispatch/suspend/resume/validation plumbing in isolation from any
// real code generator.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (b *Backend) Compile(code jit.AnalyzedBytecode) (jit.CompiledCode, error) {
	return jit.CompiledCode{
		FnID:             code.Hash,
		BytecodeSize:     len(code.Code),
		BasicBlockCount:  code.BasicBlockCount(),
		HasExternalCalls: code.HasExternalCalls,
	}, nil
}

func (b *Backend) Execute(compiled jit.CompiledCode, host vm.Host, frame *vm.Frame) jit.Outcome {
	res := vm.NewInterpreter().Run(frame)
	return fromResult(res)
}

// Resume is never reached by this backend since Execute never suspends --
// the interpreter it delegates to runs sub-calls inline via the Caller
// interface rather than ever returning Suspended. It exists only to satisfy
// the Backend contract.
func (b *Backend) Resume(resumeState interface{}, subCallReturnData []byte, subCallGasLeft uint64, subCallSuccess bool, host vm.Host, frame *vm.Frame) jit.Outcome {
	return jit.Outcome{Kind: jit.OutcomeHalt, Err: vm.ErrInvalidOpcode}
}

func fromResult(res vm.Result) jit.Outcome {
	switch {
	case res.Success:
		return jit.Outcome{Kind: jit.OutcomeSuccess, Output: res.ReturnData, GasUsed: res.GasUsed, GasRefund: res.GasRefund}
	case res.Reverted:
		return jit.Outcome{Kind: jit.OutcomeRevert, Output: res.ReturnData, GasUsed: res.GasUsed}
	default:
		return jit.Outcome{Kind: jit.OutcomeHalt, Err: res.Err}
	}
}
