// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

type account struct {
	nonce    uint64
	balance  uint256.Int
	code     []byte
	codeHash common.Hash
	storage  map[common.Hash]common.Hash
}

func newAccount() *account {
	return &account{storage: make(map[common.Hash]common.Hash)}
}

type storageKey struct {
	addr common.Address
	key  common.Hash
}

// journalEntry undoes one mutation on RevertToSnapshot.
type journalEntry func(h *StateHost)

// StateHost is the reference in-memory Host implementation used by tests
// and by the sequencer/follower node path when no external state backend
// is wired. It owns original-storage-value caching (SLOAD's first value
// per transaction, used for SSTORE gas/refund math) and the BAL read/write
// buffers consumed by block execution (4.E).
type StateHost struct {
	block BlockContext
	tx    TxContext

	accounts map[common.Address]*account

	warmAccounts map[common.Address]struct{}
	warmSlots    map[storageKey]struct{}
	original     map[storageKey]common.Hash

	transient map[storageKey]common.Hash

	journal []journalEntry

	logs         []Log
	selfdestructs map[common.Address]common.Address

	// BAL accumulators (read/write sets), see core/blockexec/bal.go.
	StorageReads   map[common.Address]map[common.Hash]struct{}
	StorageWrites  map[common.Address]map[common.Hash]common.Hash
	AccountReads   map[common.Address]struct{}
	BalanceChanges map[common.Address]*uint256.Int
}

// Log is a minimal event log entry; block execution converts it into the
// chain's canonical receipt log type.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// NewStateHost builds an empty state host for the given block/tx context.
func NewStateHost(block BlockContext, tx TxContext) *StateHost {
	return &StateHost{
		block:          block,
		tx:             tx,
		accounts:       make(map[common.Address]*account),
		warmAccounts:   make(map[common.Address]struct{}),
		warmSlots:      make(map[storageKey]struct{}),
		original:       make(map[storageKey]common.Hash),
		transient:      make(map[storageKey]common.Hash),
		selfdestructs:  make(map[common.Address]common.Address),
		StorageReads:   make(map[common.Address]map[common.Hash]struct{}),
		StorageWrites:  make(map[common.Address]map[common.Hash]common.Hash),
		AccountReads:   make(map[common.Address]struct{}),
		BalanceChanges: make(map[common.Address]*uint256.Int),
	}
}

func (h *StateHost) acct(addr common.Address) *account {
	a, ok := h.accounts[addr]
	if !ok {
		a = newAccount()
		h.accounts[addr] = a
	}
	return a
}

// SetAccountForTesting seeds an account's nonce/balance/storage for test
// fixtures; not part of the Host interface.
func (h *StateHost) SetAccountForTesting(addr common.Address, nonce uint64, balance *uint256.Int, storage map[common.Hash]common.Hash) {
	a := newAccount()
	a.nonce = nonce
	if balance != nil {
		a.balance = *balance
	}
	for k, v := range storage {
		a.storage[k] = v
	}
	h.accounts[addr] = a
}

// Balances returns a snapshot of every touched account's current balance.
// Callers that need a signed balance delta (e.g. the sequencer's
// per-block account-update accounting) diff this snapshot, taken before
// executing a block, against BalanceChanges once execution completes.
func (h *StateHost) Balances() map[common.Address]uint256.Int {
	out := make(map[common.Address]uint256.Int, len(h.accounts))
	for addr, a := range h.accounts {
		out[addr] = a.balance
	}
	return out
}

func (h *StateHost) BlockContext() BlockContext { return h.block }
func (h *StateHost) TxContext() TxContext       { return h.tx }

func (h *StateHost) AccessAccount(addr common.Address) bool {
	_, warm := h.warmAccounts[addr]
	if !warm {
		h.warmAccounts[addr] = struct{}{}
		h.journal = append(h.journal, func(hh *StateHost) { delete(hh.warmAccounts, addr) })
	}
	return warm
}

func (h *StateHost) GetBalance(addr common.Address) *uint256.Int {
	b := h.acct(addr).balance
	return &b
}

func (h *StateHost) AddBalance(addr common.Address, amount *uint256.Int) {
	a := h.acct(addr)
	prev := a.balance
	a.balance.Add(&a.balance, amount)
	cur := a.balance
	h.journal = append(h.journal, func(hh *StateHost) { hh.acct(addr).balance = prev })
	h.BalanceChanges[addr] = &cur
}

func (h *StateHost) SubBalance(addr common.Address, amount *uint256.Int) {
	a := h.acct(addr)
	prev := a.balance
	a.balance.Sub(&a.balance, amount)
	cur := a.balance
	h.journal = append(h.journal, func(hh *StateHost) { hh.acct(addr).balance = prev })
	h.BalanceChanges[addr] = &cur
}

func (h *StateHost) GetNonce(addr common.Address) uint64 { return h.acct(addr).nonce }

func (h *StateHost) SetNonce(addr common.Address, nonce uint64) {
	a := h.acct(addr)
	prev := a.nonce
	a.nonce = nonce
	h.journal = append(h.journal, func(hh *StateHost) { hh.acct(addr).nonce = prev })
}

func (h *StateHost) GetCode(addr common.Address) []byte { return h.acct(addr).code }

func (h *StateHost) SetCode(addr common.Address, code []byte) {
	a := h.acct(addr)
	a.code = code
	a.codeHash = common.BytesToHash(code) // placeholder hash, real hashing lives in core/types.NewCode
}

func (h *StateHost) GetCodeHash(addr common.Address) common.Hash { return h.acct(addr).codeHash }

func (h *StateHost) recordRead(addr common.Address, key common.Hash) {
	m, ok := h.StorageReads[addr]
	if !ok {
		m = make(map[common.Hash]struct{})
		h.StorageReads[addr] = m
	}
	m[key] = struct{}{}
}

func (h *StateHost) AccessSlot(addr common.Address, key common.Hash) bool {
	sk := storageKey{addr, key}
	_, warm := h.warmSlots[sk]
	if !warm {
		h.warmSlots[sk] = struct{}{}
		h.journal = append(h.journal, func(hh *StateHost) { delete(hh.warmSlots, sk) })
	}
	if _, ok := h.original[sk]; !ok {
		h.original[sk] = h.acct(addr).storage[key]
	}
	return warm
}

func (h *StateHost) GetState(addr common.Address, key common.Hash) common.Hash {
	h.recordRead(addr, key)
	return h.acct(addr).storage[key]
}

func (h *StateHost) SetState(addr common.Address, key common.Hash, value common.Hash) common.Hash {
	sk := storageKey{addr, key}
	if _, ok := h.original[sk]; !ok {
		h.original[sk] = h.acct(addr).storage[key]
	}
	// A no-op SSTORE still performs the implicit storage read the BAL must
	// record, per spec.md §4.E step 7 / §8 scenario 5.
	h.recordRead(addr, key)

	a := h.acct(addr)
	prev := a.storage[key]
	if prev != value {
		a.storage[key] = value
		h.journal = append(h.journal, func(hh *StateHost) { hh.acct(addr).storage[key] = prev })

		wm, ok := h.StorageWrites[addr]
		if !ok {
			wm = make(map[common.Hash]common.Hash)
			h.StorageWrites[addr] = wm
		}
		wm[key] = value
	}
	return h.original[sk]
}

func (h *StateHost) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	return h.transient[storageKey{addr, key}]
}

func (h *StateHost) SetTransientState(addr common.Address, key common.Hash, value common.Hash) {
	sk := storageKey{addr, key}
	prev := h.transient[sk]
	h.transient[sk] = value
	h.journal = append(h.journal, func(hh *StateHost) { hh.transient[sk] = prev })
}

func (h *StateHost) EmitLog(addr common.Address, topics []common.Hash, data []byte) {
	h.logs = append(h.logs, Log{Address: addr, Topics: topics, Data: data})
}

func (h *StateHost) Logs() []Log { return h.logs }

func (h *StateHost) SelfDestruct(addr common.Address, beneficiary common.Address) {
	bal := h.acct(addr).balance
	h.AddBalance(beneficiary, &bal)
	h.SubBalance(addr, &bal)
	h.selfdestructs[addr] = beneficiary
}

func (h *StateHost) Selfdestructs() map[common.Address]common.Address { return h.selfdestructs }

func (h *StateHost) Snapshot() int { return len(h.journal) }

func (h *StateHost) RevertToSnapshot(id int) {
	for i := len(h.journal) - 1; i >= id; i-- {
		h.journal[i](h)
	}
	h.journal = h.journal[:id]
}

func (h *StateHost) RecordStorageRead(addr common.Address, key common.Hash) { h.recordRead(addr, key) }

func (h *StateHost) RecordStorageWrite(addr common.Address, key common.Hash, newValue common.Hash) {
	wm, ok := h.StorageWrites[addr]
	if !ok {
		wm = make(map[common.Hash]common.Hash)
		h.StorageWrites[addr] = wm
	}
	wm[key] = newValue
}

func (h *StateHost) RecordAccountRead(addr common.Address) { h.AccountReads[addr] = struct{}{} }

func (h *StateHost) RecordBalanceChange(addr common.Address, newBalance *uint256.Int) {
	h.BalanceChanges[addr] = newBalance
}
