// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import "github.com/holiman/uint256"

func opAnd(in *Interpreter, f *Frame) error {
	return binaryOp(GasFastestStep, func(x, y *uint256.Int) *uint256.Int {
		return new(uint256.Int).And(x, y)
	})(in, f)
}

func opOr(in *Interpreter, f *Frame) error {
	return binaryOp(GasFastestStep, func(x, y *uint256.Int) *uint256.Int {
		return new(uint256.Int).Or(x, y)
	})(in, f)
}

func opXor(in *Interpreter, f *Frame) error {
	return binaryOp(GasFastestStep, func(x, y *uint256.Int) *uint256.Int {
		return new(uint256.Int).Xor(x, y)
	})(in, f)
}

func opNot(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasFastestStep); err != nil {
		return err
	}
	v, err := f.stack.pop()
	if err != nil {
		return err
	}
	res := new(uint256.Int).Not(&v)
	f.pc++
	return f.stack.push(res)
}

func opByte(in *Interpreter, f *Frame) error {
	return binaryOp(GasFastestStep, func(i, x *uint256.Int) *uint256.Int {
		res := new(uint256.Int)
		if i.GtUint64(31) {
			return res
		}
		return res.SetUint64(uint64(x.Byte(i)))
	})(in, f)
}

func opShl(in *Interpreter, f *Frame) error {
	return binaryOp(GasFastestStep, func(shift, val *uint256.Int) *uint256.Int {
		if shift.GtUint64(255) {
			return new(uint256.Int)
		}
		return new(uint256.Int).Lsh(val, uint(shift.Uint64()))
	})(in, f)
}

func opShr(in *Interpreter, f *Frame) error {
	return binaryOp(GasFastestStep, func(shift, val *uint256.Int) *uint256.Int {
		if shift.GtUint64(255) {
			return new(uint256.Int)
		}
		return new(uint256.Int).Rsh(val, uint(shift.Uint64()))
	})(in, f)
}

func opSar(in *Interpreter, f *Frame) error {
	return binaryOp(GasFastestStep, func(shift, val *uint256.Int) *uint256.Int {
		res := new(uint256.Int)
		if shift.GtUint64(255) {
			if val.Sign() >= 0 {
				return res
			}
			return res.SetAllOne()
		}
		return res.SRsh(val, uint(shift.Uint64()))
	})(in, f)
}
