// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockexec

import (
	"sort"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/rollup/core/vm"
)

// AccountAccess is one contract's EIP-7928 access-list entry: the storage
// slots read, the slots actually changed (value differs from pre-state),
// and whether its balance changed this block.
type AccountAccess struct {
	Address        common.Address
	StorageReads   []common.Hash
	StorageChanges map[common.Hash]common.Hash
	BalanceChanged bool
	NewBalance     *uint256.Int
}

// BAL is the per-block Block Access List spec.md §4.E step 7 / EIP-7928
// describes: which accounts were read, and which storage slots/balances
// were read or written, sorted by address for deterministic comparison.
type BAL struct {
	Accounts []AccountAccess
}

// BuildBAL assembles a BAL from a StateHost's accumulators. A no-op SSTORE
// (value unchanged) still appears in StorageReads but never in
// StorageChanges, matching spec.md §8 scenario 5.
func BuildBAL(host *vm.StateHost) BAL {
	addrs := make(map[common.Address]struct{})
	for a := range host.AccountReads {
		addrs[a] = struct{}{}
	}
	for a := range host.StorageReads {
		addrs[a] = struct{}{}
	}
	for a := range host.StorageWrites {
		addrs[a] = struct{}{}
	}
	for a := range host.BalanceChanges {
		addrs[a] = struct{}{}
	}

	bal := BAL{}
	for addr := range addrs {
		acc := AccountAccess{Address: addr, StorageChanges: make(map[common.Hash]common.Hash)}
		if reads, ok := host.StorageReads[addr]; ok {
			for k := range reads {
				acc.StorageReads = append(acc.StorageReads, k)
			}
			sort.Slice(acc.StorageReads, func(i, j int) bool {
				return acc.StorageReads[i].Hex() < acc.StorageReads[j].Hex()
			})
		}
		if writes, ok := host.StorageWrites[addr]; ok {
			for k, v := range writes {
				acc.StorageChanges[k] = v
			}
		}
		if bal, ok := host.BalanceChanges[addr]; ok {
			acc.BalanceChanged = true
			acc.NewBalance = bal
		}
		bal2 := acc
		bal.Accounts = append(bal.Accounts, bal2)
	}
	sort.Slice(bal.Accounts, func(i, j int) bool {
		return bal.Accounts[i].Address.Hex() < bal.Accounts[j].Address.Hex()
	})
	return bal
}
