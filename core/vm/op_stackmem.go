// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/crypto"
)

func opPop(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasQuickStep); err != nil {
		return err
	}
	if _, err := f.stack.pop(); err != nil {
		return err
	}
	f.pc++
	return nil
}

func makePush(n int) opFunc {
	return func(in *Interpreter, f *Frame) error {
		if err := f.useGas(GasFastestStep); err != nil {
			return err
		}
		start := f.pc + 1
		var buf [32]byte
		end := int(start) + n
		if end > len(f.Code) {
			end = len(f.Code)
		}
		copy(buf[32-n:], f.Code[start:end])
		v := new(uint256.Int).SetBytes(buf[32-n:])
		f.pc += uint64(1 + n)
		return f.stack.push(v)
	}
}

func opPush0(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasQuickStep); err != nil {
		return err
	}
	f.pc++
	return f.stack.push(new(uint256.Int))
}

func makeDup(n int) opFunc {
	return func(in *Interpreter, f *Frame) error {
		if err := f.useGas(GasFastestStep); err != nil {
			return err
		}
		if err := f.stack.dup(n); err != nil {
			return err
		}
		f.pc++
		return nil
	}
}

func makeSwap(n int) opFunc {
	return func(in *Interpreter, f *Frame) error {
		if err := f.useGas(GasFastestStep); err != nil {
			return err
		}
		if err := f.stack.swap(n); err != nil {
			return err
		}
		f.pc++
		return nil
	}
}

func opMLoad(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasFastestStep); err != nil {
		return err
	}
	off, err := f.stack.pop()
	if err != nil {
		return err
	}
	offset := off.Uint64()
	if err := f.memExpand(offset, 32); err != nil {
		return err
	}
	v := new(uint256.Int).SetBytes(f.memory.GetPtr(offset, 32))
	f.pc++
	return f.stack.push(v)
}

func opMStore(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasFastestStep); err != nil {
		return err
	}
	ops, err := f.stack.popN(2)
	if err != nil {
		return err
	}
	offset := ops[0].Uint64()
	if err := f.memExpand(offset, 32); err != nil {
		return err
	}
	f.memory.SetWord(offset, &ops[1])
	f.pc++
	return nil
}

func opMStore8(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasFastestStep); err != nil {
		return err
	}
	ops, err := f.stack.popN(2)
	if err != nil {
		return err
	}
	offset := ops[0].Uint64()
	if err := f.memExpand(offset, 1); err != nil {
		return err
	}
	f.memory.Set(offset, []byte{byte(ops[1].Uint64())})
	f.pc++
	return nil
}

func opMCopy(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasFastestStep); err != nil {
		return err
	}
	ops, err := f.stack.popN(3)
	if err != nil {
		return err
	}
	dst, src, size := ops[0].Uint64(), ops[1].Uint64(), ops[2].Uint64()
	maxOff := dst
	if src > maxOff {
		maxOff = src
	}
	if err := f.memExpand(maxOff, size); err != nil {
		return err
	}
	if err := f.useGas(Keccak256WordGas * wordCount(size)); err != nil {
		return err
	}
	if size > 0 {
		data := f.memory.GetCopy(src, size)
		f.memory.Set(dst, data)
	}
	f.pc++
	return nil
}

func opMSize(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasQuickStep); err != nil {
		return err
	}
	f.pc++
	return f.stack.push(u256(uint64(f.memory.Len())))
}

func opJumpdest(in *Interpreter, f *Frame) error {
	if err := f.useGas(JumpdestGas); err != nil {
		return err
	}
	f.pc++
	return nil
}

func opPC(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasQuickStep); err != nil {
		return err
	}
	v := u256(f.pc)
	f.pc++
	return f.stack.push(v)
}

func opGas(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasQuickStep); err != nil {
		return err
	}
	v := u256(f.Gas)
	f.pc++
	return f.stack.push(v)
}

func opKeccak256(in *Interpreter, f *Frame) error {
	if err := f.useGas(Keccak256Gas); err != nil {
		return err
	}
	ops, err := f.stack.popN(2)
	if err != nil {
		return err
	}
	offset, size := ops[0].Uint64(), ops[1].Uint64()
	if err := f.memExpand(offset, size); err != nil {
		return err
	}
	if err := f.useGas(Keccak256WordGas * wordCount(size)); err != nil {
		return err
	}
	hash := crypto.Keccak256(f.memory.GetPtr(offset, size))
	v := new(uint256.Int).SetBytes(hash)
	f.pc++
	return f.stack.push(v)
}

func opCallDataLoad(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasFastestStep); err != nil {
		return err
	}
	off, err := f.stack.pop()
	if err != nil {
		return err
	}
	var buf [32]byte
	offset := off.Uint64()
	if offset < uint64(len(f.Input)) {
		copy(buf[:], f.Input[offset:])
	}
	v := new(uint256.Int).SetBytes(buf[:])
	f.pc++
	return f.stack.push(v)
}

func opCallDataSize(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasQuickStep); err != nil {
		return err
	}
	f.pc++
	return f.stack.push(u256(uint64(len(f.Input))))
}

func opCallDataCopy(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasFastestStep); err != nil {
		return err
	}
	ops, err := f.stack.popN(3)
	if err != nil {
		return err
	}
	destOffset, srcOffset, size := ops[0].Uint64(), ops[1].Uint64(), ops[2].Uint64()
	if err := f.memExpand(destOffset, size); err != nil {
		return err
	}
	if err := f.useGas(Keccak256WordGas / 2 * wordCount(size)); err != nil {
		return err
	}
	data := getData(f.Input, srcOffset, size)
	f.memory.Set(destOffset, data)
	f.pc++
	return nil
}

func opCodeSize(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasQuickStep); err != nil {
		return err
	}
	f.pc++
	return f.stack.push(u256(uint64(len(f.Code))))
}

func opCodeCopy(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasFastestStep); err != nil {
		return err
	}
	ops, err := f.stack.popN(3)
	if err != nil {
		return err
	}
	destOffset, srcOffset, size := ops[0].Uint64(), ops[1].Uint64(), ops[2].Uint64()
	if err := f.memExpand(destOffset, size); err != nil {
		return err
	}
	if err := f.useGas(Keccak256WordGas / 2 * wordCount(size)); err != nil {
		return err
	}
	data := getData(f.Code, srcOffset, size)
	f.memory.Set(destOffset, data)
	f.pc++
	return nil
}

func opReturnDataSize(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasQuickStep); err != nil {
		return err
	}
	f.pc++
	return f.stack.push(u256(uint64(len(f.returnData))))
}

func opReturnDataCopy(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasFastestStep); err != nil {
		return err
	}
	ops, err := f.stack.popN(3)
	if err != nil {
		return err
	}
	destOffset, srcOffset, size := ops[0].Uint64(), ops[1].Uint64(), ops[2].Uint64()
	if srcOffset+size > uint64(len(f.returnData)) {
		return ErrReturnDataOOB
	}
	if err := f.memExpand(destOffset, size); err != nil {
		return err
	}
	f.memory.Set(destOffset, f.returnData[srcOffset:srcOffset+size])
	f.pc++
	return nil
}

// getData returns data[offset:offset+size], zero-padded if the window runs
// past the end of data (used for CALLDATACOPY/CODECOPY semantics).
func getData(data []byte, offset, size uint64) []byte {
	out := make([]byte, size)
	if offset >= uint64(len(data)) {
		return out
	}
	end := offset + size
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	copy(out, data[offset:end])
	return out
}
