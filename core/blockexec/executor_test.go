// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockexec

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	gtypes "github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/crypto"
	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/core/vm"
	"github.com/stretchr/testify/require"
)

// TestExecuteBlockSimpleTransfer runs one signed, gas-paying value transfer
// through the full per-transaction pipeline: sender recovery, nonce check,
// intrinsic gas, EVM dispatch, fee distribution, and receipt construction.
func TestExecuteBlockSimpleTransfer(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)
	recipient := common.Address{0xBE, 0xEF}
	coinbase := common.Address{0xC0, 0xFF, 0xEE}

	signer := gtypes.HomesteadSigner{}
	legacy := &gtypes.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(1_000_000_000), // 1 gwei
		Gas:      21000,
		To:       &recipient,
		Value:    big.NewInt(1_000_000_000_000_000), // 0.001 ETH
	}
	signed, err := gtypes.SignNewTx(key, signer, legacy)
	require.NoError(t, err)
	tx := types.NewTransaction(signed, false)

	host := vm.NewStateHost(vm.BlockContext{GasLimit: 30_000_000}, vm.TxContext{})
	host.SetAccountForTesting(sender, 0, uint256.NewInt(10_000_000_000_000_000), nil)

	exec := NewExecutor(signer, "cancun", nil, types.FeeConfig{})
	block := vm.BlockContext{Coinbase: coinbase, GasLimit: 30_000_000}

	receipts, err := exec.ExecuteBlock(host, block, []*types.Transaction{tx})
	require.NoError(t, err)
	require.Len(t, receipts, 1)

	r := receipts[0]
	require.Equal(t, types.ReceiptStatusSuccessful, r.Status)
	require.Equal(t, uint64(21000), r.GasUsed)
	require.Equal(t, uint64(21000), r.CumulativeGasUsed)

	assert := require.New(t)
	assert.Equal(uint64(1), host.GetNonce(sender))
	assert.Equal(uint64(1_000_000_000_000_000), host.GetBalance(recipient).Uint64())

	// sender pays value + gas*price; coinbase collects the tip (here, the
	// whole gas price, since there is no base fee to net out).
	expectedSenderBalance := new(uint256.Int).SetUint64(10_000_000_000_000_000)
	expectedSenderBalance.Sub(expectedSenderBalance, uint256.NewInt(1_000_000_000_000_000))
	expectedSenderBalance.Sub(expectedSenderBalance, new(uint256.Int).Mul(uint256.NewInt(1_000_000_000), uint256.NewInt(21000)))
	assert.Equal(expectedSenderBalance.Uint64(), host.GetBalance(sender).Uint64())
	assert.Equal(new(uint256.Int).Mul(uint256.NewInt(1_000_000_000), uint256.NewInt(21000)).Uint64(), host.GetBalance(coinbase).Uint64())
}
