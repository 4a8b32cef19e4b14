// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

func constPush(cost uint64, fn func(f *Frame) *uint256.Int) opFunc {
	return func(in *Interpreter, f *Frame) error {
		if err := f.useGas(cost); err != nil {
			return err
		}
		v := fn(f)
		f.pc++
		return f.stack.push(v)
	}
}

func opAddress(in *Interpreter, f *Frame) error {
	return constPush(GasQuickStep, func(f *Frame) *uint256.Int {
		return new(uint256.Int).SetBytes(f.Address[:])
	})(in, f)
}

func opCaller(in *Interpreter, f *Frame) error {
	return constPush(GasQuickStep, func(f *Frame) *uint256.Int {
		return new(uint256.Int).SetBytes(f.CallerAddr[:])
	})(in, f)
}

func opOrigin(in *Interpreter, f *Frame) error {
	return constPush(GasQuickStep, func(f *Frame) *uint256.Int {
		o := f.Host.TxContext().Origin
		return new(uint256.Int).SetBytes(o[:])
	})(in, f)
}

func opCallValue(in *Interpreter, f *Frame) error {
	return constPush(GasQuickStep, func(f *Frame) *uint256.Int {
		if f.Value == nil {
			return new(uint256.Int)
		}
		return new(uint256.Int).Set(f.Value)
	})(in, f)
}

func opGasPrice(in *Interpreter, f *Frame) error {
	return constPush(GasQuickStep, func(f *Frame) *uint256.Int {
		return new(uint256.Int).Set(f.Host.TxContext().GasPrice)
	})(in, f)
}

func opCoinbase(in *Interpreter, f *Frame) error {
	return constPush(GasQuickStep, func(f *Frame) *uint256.Int {
		c := f.Host.BlockContext().Coinbase
		return new(uint256.Int).SetBytes(c[:])
	})(in, f)
}

func opTimestamp(in *Interpreter, f *Frame) error {
	return constPush(GasQuickStep, func(f *Frame) *uint256.Int {
		return u256(f.Host.BlockContext().Time)
	})(in, f)
}

func opNumber(in *Interpreter, f *Frame) error {
	return constPush(GasQuickStep, func(f *Frame) *uint256.Int {
		return u256(f.Host.BlockContext().BlockNumber)
	})(in, f)
}

func opGasLimit(in *Interpreter, f *Frame) error {
	return constPush(GasQuickStep, func(f *Frame) *uint256.Int {
		return u256(f.Host.BlockContext().GasLimit)
	})(in, f)
}

func opChainID(in *Interpreter, f *Frame) error {
	return constPush(GasQuickStep, func(f *Frame) *uint256.Int {
		id := f.Host.BlockContext().ChainID
		if id == nil {
			return new(uint256.Int)
		}
		return new(uint256.Int).Set(id)
	})(in, f)
}

func opBaseFee(in *Interpreter, f *Frame) error {
	return constPush(GasQuickStep, func(f *Frame) *uint256.Int {
		bf := f.Host.BlockContext().BaseFee
		if bf == nil {
			return new(uint256.Int)
		}
		return new(uint256.Int).Set(bf)
	})(in, f)
}

func opSelfBalance(in *Interpreter, f *Frame) error {
	return constPush(GasFastStep, func(f *Frame) *uint256.Int {
		return f.Host.GetBalance(f.Address)
	})(in, f)
}

func opBalance(in *Interpreter, f *Frame) error {
	addrWord, err := f.stack.pop()
	if err != nil {
		return err
	}
	addr := addrFromWord(&addrWord)
	cost := uint64(WarmStorageReadCost)
	if !f.Host.AccessAccount(addr) {
		cost = ColdAccountAccessCost
	}
	if err := f.useGas(cost); err != nil {
		return err
	}
	f.pc++
	return f.stack.push(f.Host.GetBalance(addr))
}

func opBlockHash(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasExtStep); err != nil {
		return err
	}
	numWord, err := f.stack.pop()
	if err != nil {
		return err
	}
	var h common.Hash
	if f.dispatcher != nil && numWord.IsUint64() {
		h = f.dispatcher.BlockHash(numWord.Uint64())
	}
	v := new(uint256.Int).SetBytes(h[:])
	f.pc++
	return f.stack.push(v)
}

func makeLog(n int) opFunc {
	return func(in *Interpreter, f *Frame) error {
		if f.Static {
			return ErrWriteProtection
		}
		ops, err := f.stack.popN(2 + n)
		if err != nil {
			return err
		}
		offset, size := ops[0].Uint64(), ops[1].Uint64()
		if err := f.memExpand(offset, size); err != nil {
			return err
		}
		cost := uint64(LogGas) + uint64(n)*LogTopicGas + size*LogDataGas
		if err := f.useGas(cost); err != nil {
			return err
		}
		topics := make([]common.Hash, n)
		for i := 0; i < n; i++ {
			topics[i] = common.Hash(ops[2+i].Bytes32())
		}
		data := f.memory.GetCopy(offset, size)
		f.Host.EmitLog(f.Address, topics, data)
		f.pc++
		return nil
	}
}

func opExtCodeSize(in *Interpreter, f *Frame) error {
	addrWord, err := f.stack.pop()
	if err != nil {
		return err
	}
	addr := addrFromWord(&addrWord)
	cost := uint64(WarmStorageReadCost)
	if !f.Host.AccessAccount(addr) {
		cost = ColdAccountAccessCost
	}
	if err := f.useGas(cost); err != nil {
		return err
	}
	f.pc++
	return f.stack.push(u256(uint64(len(f.Host.GetCode(addr)))))
}

func opExtCodeHash(in *Interpreter, f *Frame) error {
	addrWord, err := f.stack.pop()
	if err != nil {
		return err
	}
	addr := addrFromWord(&addrWord)
	cost := uint64(WarmStorageReadCost)
	if !f.Host.AccessAccount(addr) {
		cost = ColdAccountAccessCost
	}
	if err := f.useGas(cost); err != nil {
		return err
	}
	hash := f.Host.GetCodeHash(addr)
	f.pc++
	return f.stack.push(new(uint256.Int).SetBytes(hash[:]))
}

func opExtCodeCopy(in *Interpreter, f *Frame) error {
	ops, err := f.stack.popN(4)
	if err != nil {
		return err
	}
	addr := addrFromWord(&ops[0])
	destOffset, srcOffset, size := ops[1].Uint64(), ops[2].Uint64(), ops[3].Uint64()
	cost := uint64(WarmStorageReadCost)
	if !f.Host.AccessAccount(addr) {
		cost = ColdAccountAccessCost
	}
	if err := f.useGas(cost); err != nil {
		return err
	}
	if err := f.memExpand(destOffset, size); err != nil {
		return err
	}
	if err := f.useGas(Keccak256WordGas / 2 * wordCount(size)); err != nil {
		return err
	}
	code := f.Host.GetCode(addr)
	f.memory.Set(destOffset, getData(code, srcOffset, size))
	f.pc++
	return nil
}

func opBlobHash(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasFastestStep); err != nil {
		return err
	}
	idx, err := f.stack.pop()
	if err != nil {
		return err
	}
	hashes := f.Host.TxContext().BlobHashes
	var out common.Hash
	if idx.IsUint64() && idx.Uint64() < uint64(len(hashes)) {
		out = hashes[idx.Uint64()]
	}
	f.pc++
	return f.stack.push(new(uint256.Int).SetBytes(out[:]))
}
