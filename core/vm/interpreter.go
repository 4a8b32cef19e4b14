// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Result is the outcome of running a frame to completion: success, revert,
// or halt (an execution error). GasUsed is always pre-refund; the caller
// (block execution, 4.E) applies RefundCap and subtracts GasRefund once,
// at transaction finalization.
type Result struct {
	Success    bool
	Reverted   bool
	GasUsed    uint64
	GasRefund  uint64
	ReturnData []byte
	Err        error
}

// Interpreter runs a single call frame to completion. It is synchronous
// and never suspends, per spec.md §5.
type Interpreter struct{}

// NewInterpreter constructs the (stateless) interpreter.
func NewInterpreter() *Interpreter { return &Interpreter{} }

// Run executes frame from pc=0 until STOP/RETURN/REVERT/an error, or gas
// is exhausted.
func (in *Interpreter) Run(f *Frame) Result {
	snapshot := f.Host.Snapshot()
	for !f.stopped {
		if int(f.pc) >= len(f.Code) {
			f.stopped = true
			break
		}
		op := OpCode(f.Code[f.pc])
		handler, ok := opTable[op]
		if !ok {
			return in.halt(f, snapshot, ErrInvalidOpcode)
		}
		if err := handler(in, f); err != nil {
			if err == errRevert {
				f.Host.RevertToSnapshot(snapshot)
				return Result{
					Reverted:   true,
					GasUsed:    f.GasUsed,
					ReturnData: f.returnData,
					Err:        ErrExecutionReverted,
				}
			}
			return in.halt(f, snapshot, err)
		}
	}
	return Result{
		Success:    true,
		GasUsed:    f.GasUsed,
		GasRefund:  f.GasRefund,
		ReturnData: f.returnData,
	}
}

func (in *Interpreter) halt(f *Frame, snapshot int, err error) Result {
	f.Host.RevertToSnapshot(snapshot)
	f.GasUsed += f.Gas
	f.Gas = 0
	return Result{GasUsed: f.GasUsed, Err: err}
}

// errRevert is a sentinel used internally to unwind to REVERT handling
// without allocating on every call.
var errRevert = &revertError{}

type revertError struct{}

func (*revertError) Error() string { return "revert" }

func (f *Frame) useGas(amount uint64) error {
	if f.Gas < amount {
		return ErrOutOfGas
	}
	f.Gas -= amount
	f.GasUsed += amount
	return nil
}

func (f *Frame) memExpand(offset, size uint64) error {
	if size == 0 {
		return nil
	}
	newSize := offset + size
	cost := expansionCost(newSize, uint64(f.memory.Len()))
	if err := f.useGas(cost); err != nil {
		return err
	}
	f.memory.resize(newSize)
	return nil
}

func u256(v uint64) *uint256.Int { return uint256.NewInt(v) }

func addrFromWord(w *uint256.Int) common.Address {
	b := w.Bytes20()
	return common.Address(b)
}
