// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "github.com/luxfi/geth/common"

// OperatorFeeConfig routes a per-gas operator fee to a vault address,
// separate from the L1 base fee vault.
type OperatorFeeConfig struct {
	Vault  common.Address
	PerGas uint64
}

// L1FeeConfig routes a per-blob-gas L1 data-availability fee to a vault.
type L1FeeConfig struct {
	Vault      common.Address
	PerBlobGas uint64
}

// FeeConfig is the per-block configuration consumed by block execution
// (4.E) to distribute gas fees under L2 rules. All three vault fields are
// optional: a nil field disables the corresponding distribution leg.
type FeeConfig struct {
	BaseFeeVault      *common.Address
	OperatorFeeConfig *OperatorFeeConfig
	L1FeeConfig       *L1FeeConfig
}
