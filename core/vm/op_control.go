// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

func opStop(in *Interpreter, f *Frame) error {
	f.stopped = true
	return nil
}

func opJump(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasMidStep); err != nil {
		return err
	}
	dest, err := f.stack.pop()
	if err != nil {
		return err
	}
	target := dest.Uint64()
	if !dest.IsUint64() || !f.jumpdests()[target] {
		return ErrInvalidJump
	}
	f.pc = target
	return nil
}

func opJumpi(in *Interpreter, f *Frame) error {
	if err := f.useGas(GasSlowStep); err != nil {
		return err
	}
	ops, err := f.stack.popN(2)
	if err != nil {
		return err
	}
	dest, cond := ops[0], ops[1]
	if cond.IsZero() {
		f.pc++
		return nil
	}
	target := dest.Uint64()
	if !dest.IsUint64() || !f.jumpdests()[target] {
		return ErrInvalidJump
	}
	f.pc = target
	return nil
}

func opReturn(in *Interpreter, f *Frame) error {
	ops, err := f.stack.popN(2)
	if err != nil {
		return err
	}
	offset, size := ops[0].Uint64(), ops[1].Uint64()
	if err := f.memExpand(offset, size); err != nil {
		return err
	}
	f.returnData = f.memory.GetCopy(offset, size)
	f.stopped = true
	return nil
}

func opRevert(in *Interpreter, f *Frame) error {
	ops, err := f.stack.popN(2)
	if err != nil {
		return err
	}
	offset, size := ops[0].Uint64(), ops[1].Uint64()
	if err := f.memExpand(offset, size); err != nil {
		return err
	}
	f.returnData = f.memory.GetCopy(offset, size)
	f.stopped = true
	return errRevert
}

func opInvalid(in *Interpreter, f *Frame) error {
	return ErrInvalidOpcode
}

func opSelfDestruct(in *Interpreter, f *Frame) error {
	if f.Static {
		return ErrWriteProtection
	}
	if err := f.useGas(5000); err != nil {
		return err
	}
	beneficiary, err := f.stack.pop()
	if err != nil {
		return err
	}
	addr := addrFromWord(&beneficiary)
	if !f.Host.AccessAccount(addr) {
		if err := f.useGas(ColdAccountAccessCost); err != nil {
			return err
		}
	}
	f.Host.SelfDestruct(f.Address, addr)
	f.stopped = true
	return nil
}
