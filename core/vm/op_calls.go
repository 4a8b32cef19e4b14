// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/holiman/uint256"
)

// callGas implements EIP-150's 63/64ths rule: a call may forward at most
// gas - gas/64 of the caller's remaining gas.
func callGas(available uint64) uint64 {
	return available - available/64
}

func makeCall(kind CallKind, hasValue bool) opFunc {
	return func(in *Interpreter, f *Frame) error {
		n := 6
		if hasValue {
			n = 7
		}
		ops, err := f.stack.popN(n)
		if err != nil {
			return err
		}
		idx := 0
		gasArg := ops[idx]
		idx++
		addr := addrFromWord(&ops[idx])
		idx++
		var value *uint256.Int = new(uint256.Int)
		if hasValue {
			value = &ops[idx]
			idx++
		}
		argsOffset, argsSize := ops[idx].Uint64(), ops[idx+1].Uint64()
		retOffset, retSize := ops[idx+2].Uint64(), ops[idx+3].Uint64()

		if kind == CallKindCall && !value.IsZero() && f.Static {
			return ErrWriteProtection
		}

		cost := uint64(WarmStorageReadCost)
		if !f.Host.AccessAccount(addr) {
			cost = ColdAccountAccessCost
		}
		if !value.IsZero() {
			cost += CallValueTransferGas
		}
		if err := f.useGas(cost); err != nil {
			return err
		}
		maxOff := argsOffset + argsSize
		if retOffset+retSize > maxOff {
			maxOff = retOffset + retSize
		}
		if err := f.memExpand(maxOff-argsSize, argsSize); err != nil {
			return err
		}
		if err := f.memExpand(retOffset, retSize); err != nil {
			return err
		}

		input := f.memory.GetCopy(argsOffset, argsSize)
		gasToSend := callGas(f.Gas)
		if gasArg.IsUint64() && gasArg.Uint64() < gasToSend {
			gasToSend = gasArg.Uint64()
		}
		f.Gas -= gasToSend
		if !value.IsZero() {
			gasToSend += CallStipend
		}

		static := f.Static || kind == CallKindStaticCall
		ret, gasLeft, success, err := f.dispatcher.Call(f, kind, addr, value, input, gasToSend, static)
		f.Gas += gasLeft
		f.returnData = ret
		if retSize > 0 {
			n := retSize
			if uint64(len(ret)) < n {
				n = uint64(len(ret))
			}
			f.memory.Set(retOffset, ret[:n])
		}
		res := new(uint256.Int)
		if success {
			res = u256(1)
		}
		if err != nil && err != ErrExecutionReverted {
			return err
		}
		f.pc++
		return f.stack.push(res)
	}
}

func makeCreate(kind CreateKindOp) opFunc {
	return func(in *Interpreter, f *Frame) error {
		if f.Static {
			return ErrWriteProtection
		}
		n := 3
		if kind == CreateKindCreate2 {
			n = 4
		}
		ops, err := f.stack.popN(n)
		if err != nil {
			return err
		}
		value := ops[0]
		offset, size := ops[1].Uint64(), ops[2].Uint64()
		var salt *uint256.Int
		if kind == CreateKindCreate2 {
			salt = &ops[3]
		}
		if err := f.useGas(CreateGas); err != nil {
			return err
		}
		if err := f.memExpand(offset, size); err != nil {
			return err
		}
		if kind == CreateKindCreate2 {
			if err := f.useGas(Keccak256WordGas * wordCount(size)); err != nil {
				return err
			}
		}
		initcode := f.memory.GetCopy(offset, size)
		gasToSend := callGas(f.Gas)
		f.Gas -= gasToSend

		ret, gasLeft, addr, success, err := f.dispatcher.Create(f, kind, &value, initcode, gasToSend, salt)
		f.Gas += gasLeft
		f.returnData = ret
		res := new(uint256.Int)
		if success {
			res = new(uint256.Int).SetBytes(addr[:])
		}
		if err != nil && err != ErrExecutionReverted {
			return err
		}
		f.pc++
		return f.stack.push(res)
	}
}
