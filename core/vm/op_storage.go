// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

func opSLoad(in *Interpreter, f *Frame) error {
	slot, err := f.stack.pop()
	if err != nil {
		return err
	}
	key := common.Hash(slot.Bytes32())
	wasWarm := f.Host.AccessSlot(f.Address, key)
	cost := uint64(WarmStorageReadCost)
	if !wasWarm {
		cost = ColdSloadCost
	}
	if err := f.useGas(cost); err != nil {
		return err
	}
	v := f.Host.GetState(f.Address, key)
	res := new(uint256.Int).SetBytes(v[:])
	f.pc++
	return f.stack.push(res)
}

// opSStore implements the full EIP-2200/2929/3529 cost and refund matrix:
// cold-access surcharge, then set/reset/noop cost depending on
// original/current/new value relationships, plus the refund schedule for
// clearing or restoring a slot.
func opSStore(in *Interpreter, f *Frame) error {
	if f.Static {
		return ErrWriteProtection
	}
	ops, err := f.stack.popN(2)
	if err != nil {
		return err
	}
	key := common.Hash(ops[0].Bytes32())
	newVal := common.Hash(ops[1].Bytes32())

	wasWarm := f.Host.AccessSlot(f.Address, key)
	coldSurcharge := uint64(0)
	if !wasWarm {
		coldSurcharge = ColdSloadCost
	}
	current := f.Host.GetState(f.Address, key)

	original := f.Host.SetState(f.Address, key, newVal)

	var gasCost uint64
	switch {
	case current == newVal:
		gasCost = WarmStorageReadCost
	case original == current:
		if original == (common.Hash{}) && newVal != (common.Hash{}) {
			gasCost = SstoreSetGas
		} else {
			gasCost = SstoreResetGas
			if newVal == (common.Hash{}) {
				f.GasRefund += SstoreClearsScheduleRefundEIP3529
			}
		}
	default:
		gasCost = WarmStorageReadCost
		if original != (common.Hash{}) {
			if current == (common.Hash{}) {
				if f.GasRefund >= SstoreClearsScheduleRefundEIP3529 {
					f.GasRefund -= SstoreClearsScheduleRefundEIP3529
				} else {
					f.GasRefund = 0
				}
			}
			if newVal == (common.Hash{}) {
				f.GasRefund += SstoreClearsScheduleRefundEIP3529
			}
		}
		if original == newVal {
			if original == (common.Hash{}) {
				f.GasRefund += SstoreSetGas - WarmStorageReadCost
			} else {
				f.GasRefund += SstoreResetGas - WarmStorageReadCost
			}
		}
	}
	if err := f.useGas(gasCost + coldSurcharge); err != nil {
		return err
	}
	f.pc++
	return nil
}

func opTLoad(in *Interpreter, f *Frame) error {
	if err := f.useGas(WarmStorageReadCost); err != nil {
		return err
	}
	slot, err := f.stack.pop()
	if err != nil {
		return err
	}
	key := common.Hash(slot.Bytes32())
	v := f.Host.GetTransientState(f.Address, key)
	res := new(uint256.Int).SetBytes(v[:])
	f.pc++
	return f.stack.push(res)
}

func opTStore(in *Interpreter, f *Frame) error {
	if f.Static {
		return ErrWriteProtection
	}
	if err := f.useGas(WarmStorageReadCost); err != nil {
		return err
	}
	ops, err := f.stack.popN(2)
	if err != nil {
		return err
	}
	key := common.Hash(ops[0].Bytes32())
	val := common.Hash(ops[1].Bytes32())
	f.Host.SetTransientState(f.Address, key, val)
	f.pc++
	return nil
}
