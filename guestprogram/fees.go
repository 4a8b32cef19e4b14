// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guestprogram

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/rollup/core/types"
)

// applyFees restates core/blockexec's distributeFees (spec.md §4.E step 5)
// against AppState's account map instead of a vm.Host, per spec.md §4.H
// step 3's "apply gas-fee distribution (same rule as 4.E)": the sender is
// debited the full effective gas price, and the proceeds split between the
// coinbase (the tip net of vault cuts), the base-fee vault, and the
// operator-fee vault.
func applyFees(state *AppState, sender, coinbase common.Address, fc types.FeeConfig, gasUsed uint64, effectiveGasPrice, baseFee *uint256.Int) {
	gu := new(uint256.Int).SetUint64(gasUsed)

	debit := new(uint256.Int).Mul(effectiveGasPrice, gu)
	debitBalance(state, sender, debit)

	perGasToCoinbase := new(uint256.Int).Set(effectiveGasPrice)
	if baseFee != nil {
		perGasToCoinbase = new(uint256.Int).Sub(perGasToCoinbase, baseFee)
	}

	if fc.BaseFeeVault != nil && baseFee != nil {
		creditBalance(state, *fc.BaseFeeVault, new(uint256.Int).Mul(baseFee, gu))
	}
	if fc.OperatorFeeConfig != nil {
		perGas := new(uint256.Int).SetUint64(fc.OperatorFeeConfig.PerGas)
		creditBalance(state, fc.OperatorFeeConfig.Vault, new(uint256.Int).Mul(perGas, gu))
		perGasToCoinbase = new(uint256.Int).Sub(perGasToCoinbase, perGas)
	}

	creditBalance(state, coinbase, new(uint256.Int).Mul(perGasToCoinbase, gu))
}

// creditBalance adds amount to addr's balance, creating the account (as the
// state trie would for a never-before-seen address) if unseen, and marking
// it dirty.
func creditBalance(state *AppState, addr common.Address, amount *uint256.Int) {
	acc := state.EnsureAccount(addr)
	acc.Balance = new(uint256.Int).Add(acc.Balance, amount)
	acc.touch()
}

// debitBalance subtracts amount from addr's balance.
func debitBalance(state *AppState, addr common.Address, amount *uint256.Int) {
	acc := state.EnsureAccount(addr)
	acc.Balance = new(uint256.Int).Sub(acc.Balance, amount)
	acc.touch()
}
