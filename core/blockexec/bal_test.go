// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockexec

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/rollup/core/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBALNoOpSStore is spec.md §8 scenario 5: a no-op SSTORE (storing the
// value already present) must appear in storage_reads but never in
// storage_changes.
func TestBALNoOpSStore(t *testing.T) {
	addr := common.Address{0xAA}
	slot := common.Hash{}
	five := common.Hash(uint256.NewInt(5).Bytes32())

	host := vm.NewStateHost(vm.BlockContext{}, vm.TxContext{GasPrice: uint256.NewInt(1)})
	host.SetAccountForTesting(addr, 0, nil, map[common.Hash]common.Hash{slot: five})

	host.SetState(addr, slot, five)

	bal := BuildBAL(host)
	require.Len(t, bal.Accounts, 1)
	acc := bal.Accounts[0]
	assert.Equal(t, addr, acc.Address)
	assert.Contains(t, acc.StorageReads, slot)
	assert.Empty(t, acc.StorageChanges)
}
