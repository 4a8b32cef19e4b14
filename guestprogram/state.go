// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package guestprogram implements spec.md §4.H: the guest-program
// state-transition core that executes a restricted, predetermined
// transaction grammar against an in-circuit state built from Merkle
// proofs, producing a new state root and L1/L2 message digests without
// running a general EVM. It is grounded on
// original_source/crates/guest-program/src/common/incremental_mpt.rs's
// proof-verification approach (a partial trie built purely from the
// supplied proof nodes, keyed by node hash) rather than on any one teacher
// file, since block execution's core/blockexec package runs a general EVM
// and is not itself the guest program's grammar.
package guestprogram

import (
	"bytes"
	"errors"
	"math/big"
	"sort"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/crypto"
	"github.com/luxfi/geth/rlp"
)

// emptyRootHash is keccak256(rlp("")), the root of an empty trie: the
// sentinel value AccountState.StorageRoot takes for an account with no
// storage slots proven.
var emptyRootHash = common.HexToHash("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

// ErrUnknownAccount is returned when a storage proof references an address
// with no supplied account proof.
var ErrUnknownAccount = errors.New("guestprogram: no account proof supplied for address")

// AccountProof is a Merkle proof (root-to-leaf RLP node list) for one
// account's leaf in the state trie, keyed by keccak256(address).
type AccountProof struct {
	Address common.Address
	Nodes   [][]byte
}

// StorageProof is a Merkle proof for one storage slot's leaf in an
// account's storage trie, keyed by keccak256(slot).
type StorageProof struct {
	Address common.Address
	Slot    common.Hash
	Nodes   [][]byte
}

// AccountState is an account as known to the guest program: the four
// fields committed in the state trie, the storage slots proven or dirtied
// this batch, and enough bookkeeping for step 4's recomputation.
type AccountState struct {
	Nonce       uint64
	Balance     *uint256.Int
	StorageRoot common.Hash
	CodeHash    common.Hash

	Storage map[common.Hash]*uint256.Int

	proof      AccountProof
	storage    map[common.Hash]StorageProof
	dirtySlots map[common.Hash]*uint256.Int
	dirty      bool
}

// touch marks the account dirty without changing a storage slot (a
// balance or nonce update), so DirtyAccounts still reports it.
func (a *AccountState) touch() { a.dirty = true }

// Proof returns the account proof it was built from, for a StateTrieUpdater
// that needs the original trie path to rebuild a partial subtrie.
func (a *AccountState) Proof() AccountProof { return a.proof }

// StorageProofs returns the storage proofs supplied for this account.
func (a *AccountState) StorageProofs() map[common.Hash]StorageProof { return a.storage }

// DirtySlots returns the slots this account dirtied this batch; a nil or
// zero value means the slot was removed (spec.md §4.H step 4: "zero
// removes the slot").
func (a *AccountState) DirtySlots() map[common.Hash]*uint256.Int { return a.dirtySlots }

// SetStorage records a dirtied slot: value == nil or zero removes the slot.
func (a *AccountState) SetStorage(slot common.Hash, value *uint256.Int) {
	if a.dirtySlots == nil {
		a.dirtySlots = make(map[common.Hash]*uint256.Int)
	}
	a.dirtySlots[slot] = value
	if value == nil || value.IsZero() {
		delete(a.Storage, slot)
	} else {
		if a.Storage == nil {
			a.Storage = make(map[common.Hash]*uint256.Int)
		}
		a.Storage[slot] = value
	}
	a.dirty = true
}

// GetStorage reads a slot as proven or dirtied so far; zero if unknown.
func (a *AccountState) GetStorage(slot common.Hash) *uint256.Int {
	if v, ok := a.Storage[slot]; ok {
		return v
	}
	return uint256.NewInt(0)
}

// accountRLP is the canonical four-field Ethereum account record, in
// trie-encoding order: nonce, balance, storage root, code hash.
type accountRLP struct {
	Nonce       uint64
	Balance     *big.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

func secureKey(b []byte) []byte {
	return crypto.Keccak256(b)
}

// AppState is the guest program's in-circuit view of account/storage
// state, built and verified from Merkle proofs against prev_state_root
// (spec.md §4.H steps 1-2).
type AppState struct {
	Accounts map[common.Address]*AccountState
}

// BuildAppState builds and verifies an AppState: every account proof must
// chain to prevStateRoot, and every storage proof for an account with
// non-empty storage must chain to that account's proven storage root.
func BuildAppState(prevStateRoot common.Hash, accountProofs []AccountProof, storageProofs []StorageProof) (*AppState, error) {
	state := &AppState{Accounts: make(map[common.Address]*AccountState, len(accountProofs))}

	for _, ap := range accountProofs {
		leaf, err := verifyProof(prevStateRoot.Bytes(), secureKey(ap.Address.Bytes()), ap.Nodes)
		if err != nil {
			return nil, err
		}
		acc := &AccountState{Balance: uint256.NewInt(0), proof: ap, storage: make(map[common.Hash]StorageProof)}
		if leaf != nil {
			var rec accountRLP
			if err := rlp.DecodeBytes(leaf, &rec); err != nil {
				return nil, ErrMpt
			}
			acc.Nonce = rec.Nonce
			if rec.Balance != nil {
				bal, overflow := uint256.FromBig(rec.Balance)
				if overflow {
					return nil, ErrMpt
				}
				acc.Balance = bal
			}
			acc.StorageRoot = rec.StorageRoot
			acc.CodeHash = rec.CodeHash
		} else {
			acc.StorageRoot = emptyRootHash
		}
		state.Accounts[ap.Address] = acc
	}

	for _, sp := range storageProofs {
		acc, ok := state.Accounts[sp.Address]
		if !ok {
			return nil, ErrUnknownAccount
		}
		acc.storage[sp.Slot] = sp
		if acc.StorageRoot == emptyRootHash {
			continue // no slot can be proven present against an empty root
		}
		leaf, err := verifyProof(acc.StorageRoot.Bytes(), secureKey(sp.Slot.Bytes()), sp.Nodes)
		if err != nil {
			return nil, err
		}
		if leaf == nil {
			continue
		}
		// Storage trie values are stored RLP-encoded-twice: the leaf's
		// value field is itself the RLP encoding of the integer's
		// big-endian bytes.
		var raw []byte
		if err := rlp.DecodeBytes(leaf, &raw); err != nil {
			return nil, ErrMpt
		}
		v, overflow := uint256.FromBig(new(big.Int).SetBytes(raw))
		if overflow {
			return nil, ErrMpt
		}
		if acc.Storage == nil {
			acc.Storage = make(map[common.Hash]*uint256.Int)
		}
		acc.Storage[sp.Slot] = v
	}

	return state, nil
}

// Account returns the account at addr, or nil if no proof was supplied.
func (s *AppState) Account(addr common.Address) *AccountState {
	return s.Accounts[addr]
}

// EnsureAccount returns the account at addr, creating an empty one (as the
// state trie would for a never-before-seen address) if none was proven.
func (s *AppState) EnsureAccount(addr common.Address) *AccountState {
	if acc, ok := s.Accounts[addr]; ok {
		return acc
	}
	acc := &AccountState{Balance: uint256.NewInt(0), StorageRoot: emptyRootHash, storage: make(map[common.Hash]StorageProof)}
	s.Accounts[addr] = acc
	return acc
}

// DirtyAccounts returns every account touched since BuildAppState, sorted
// by address so step 4's recomputation is deterministic.
func (s *AppState) DirtyAccounts() []common.Address {
	var out []common.Address
	for addr, acc := range s.Accounts {
		if acc.dirty {
			out = append(out, addr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Bytes(), out[j].Bytes()) < 0 })
	return out
}
