// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockexec

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/core/vm"
)

// distributeFees applies the rollup's L2 fee-distribution rule (spec.md
// §4.E step 5): the sender is debited the full effective gas price, and
// the proceeds are split between the coinbase (the tip net of the operator
// fee), the base-fee vault, and the operator-fee vault. When a base-fee
// vault is configured, the two vault credits plus the coinbase credit sum
// to the sender's debit; without one, the base-fee portion (baseFee *
// gasUsed) is debited and credited to no account.
func distributeFees(host vm.Host, sender, coinbase common.Address, fc types.FeeConfig, gasUsed uint64, effectiveGasPrice, baseFee *uint256.Int) {
	gu := new(uint256.Int).SetUint64(gasUsed)

	debit := new(uint256.Int).Mul(effectiveGasPrice, gu)
	host.SubBalance(sender, debit)

	perGasToCoinbase := new(uint256.Int).Set(effectiveGasPrice)
	if baseFee != nil {
		perGasToCoinbase = new(uint256.Int).Sub(perGasToCoinbase, baseFee)
	}

	if fc.BaseFeeVault != nil && baseFee != nil {
		amount := new(uint256.Int).Mul(baseFee, gu)
		host.AddBalance(*fc.BaseFeeVault, amount)
	}
	if fc.OperatorFeeConfig != nil {
		perGas := new(uint256.Int).SetUint64(fc.OperatorFeeConfig.PerGas)
		amount := new(uint256.Int).Mul(perGas, gu)
		host.AddBalance(fc.OperatorFeeConfig.Vault, amount)
		perGasToCoinbase = new(uint256.Int).Sub(perGasToCoinbase, perGas)
	}

	coinbaseAmount := new(uint256.Int).Mul(perGasToCoinbase, gu)
	host.AddBalance(coinbase, coinbaseAmount)
}
