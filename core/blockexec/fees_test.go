// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockexec

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/core/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gwei(n uint64) *uint256.Int { return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000)) }

// TestFeeDistribution is spec.md §8 scenario 4.
func TestFeeDistribution(t *testing.T) {
	host := vm.NewStateHost(vm.BlockContext{}, vm.TxContext{})
	sender := common.Address{0x01}
	coinbase := common.Address{0x02}
	baseFeeVault := common.Address{0x03}
	operatorVault := common.Address{0x04}

	host.SetAccountForTesting(sender, 0, gwei(10_000_000), nil)

	fc := types.FeeConfig{
		BaseFeeVault: &baseFeeVault,
		OperatorFeeConfig: &types.OperatorFeeConfig{
			Vault:  operatorVault,
			PerGas: 1_000_000_000, // 1 gwei
		},
	}

	baseFee := gwei(5)
	effectivePrice := gwei(7) // min(10, 5+2)
	gasUsed := uint64(100_000)

	distributeFees(host, sender, coinbase, fc, gasUsed, effectivePrice, baseFee)

	spent := new(uint256.Int).Sub(gwei(10_000_000), host.GetBalance(sender))
	require.Equal(t, gwei(700_000).Uint64(), spent.Uint64())
	assert.Equal(t, gwei(500_000).Uint64(), host.GetBalance(baseFeeVault).Uint64())
	assert.Equal(t, gwei(100_000).Uint64(), host.GetBalance(operatorVault).Uint64())
	assert.Equal(t, gwei(100_000).Uint64(), host.GetBalance(coinbase).Uint64())

	credits := new(uint256.Int).Add(host.GetBalance(baseFeeVault), host.GetBalance(operatorVault))
	credits.Add(credits, host.GetBalance(coinbase))
	assert.Equal(t, gwei(700_000).Uint64(), credits.Uint64(), "sum of credits must equal sender debit")
}
