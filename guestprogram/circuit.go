// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guestprogram

import (
	"github.com/luxfi/geth/common"

	"github.com/luxfi/rollup/core/types"
)

// Fixed gas costs for the guest program's restricted transaction grammar
// (spec.md §4.H step 3): every path other than AppCircuit delegation has a
// fixed cost, so the guest program never meters an interpreter.
const (
	GasETHTransfer = 21000
	GasWithdrawal  = 21000
	GasSystemCall  = 30000
)

// Contracts is the fixed set of addresses step 3 routes to something other
// than AppCircuit delegation.
type Contracts struct {
	Withdrawal    common.Address
	CommonBridge  common.Address
	L2Messenger   common.Address
	FeeRegistries []common.Address
}

// IsSystem reports whether addr is one of the fixed system contracts
// (common bridge, L2 messenger, fee registries).
func (c Contracts) IsSystem(addr common.Address) bool {
	if addr == c.CommonBridge || addr == c.L2Messenger {
		return true
	}
	for _, a := range c.FeeRegistries {
		if a == addr {
			return true
		}
	}
	return false
}

// AppCircuit is the application-specific transaction grammar a guest
// program instantiation supplies: a small, closed set of hooks the core
// program loop delegates to once a transaction falls through every fixed
// path (empty-data transfer, withdrawal, system contract), rather than
// interpreting arbitrary bytecode.
type AppCircuit interface {
	// ClassifyTx reports the operation kind tx represents, or
	// ErrUnknownTransaction if the circuit does not recognize it.
	ClassifyTx(tx *types.Transaction) (op string, err error)
	// ExecuteOperation applies op's effects to state, returning the event
	// logs it produced.
	ExecuteOperation(state *AppState, op string, tx *types.Transaction) ([]types.Log, error)
	// GasCost returns op's fixed gas cost.
	GasCost(op string) uint64
}
