// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guestprogram

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	gtypes "github.com/luxfi/geth/core/types"

	"github.com/luxfi/rollup/core/types"
)

// Failure taxonomy (spec.md §4.H): UnknownTransaction, InvalidParams,
// State(AppStateError), InvalidSignature, BlockValidation, Mpt (ErrMpt,
// defined in trieproof.go), Blob, MessageDigest,
// ContractCreationNotAllowed, EmptyBatch.
var (
	ErrUnknownTransaction         = errors.New("guestprogram: unknown transaction")
	ErrInvalidParams              = errors.New("guestprogram: invalid program input")
	ErrInvalidSignature           = errors.New("guestprogram: invalid transaction signature")
	ErrBlockValidation            = errors.New("guestprogram: block failed validation")
	ErrBlob                       = errors.New("guestprogram: invalid blob commitment")
	ErrMessageDigest              = errors.New("guestprogram: message digest mismatch")
	ErrContractCreationNotAllowed = types.ErrContractCreationNotAllowed
	ErrEmptyBatch                 = errors.New("guestprogram: empty batch")
)

// AppStateError wraps a proof-verification or account-lookup failure, the
// guest program's State(AppStateError) taxonomy entry, so callers can
// distinguish it from the other kinds without losing the underlying cause.
type AppStateError struct {
	Err error
}

func (e *AppStateError) Error() string { return "guestprogram: state error: " + e.Err.Error() }
func (e *AppStateError) Unwrap() error { return e.Err }

// Block is one L2 block's worth of guest-program input.
type Block struct {
	Number    uint64
	Hash      common.Hash
	Txs       []*types.Transaction
	FeeConfig types.FeeConfig
	Coinbase  common.Address
	BaseFee   *uint256.Int
}

// Input is the guest program's full input: spec.md §4.H's
// (blocks, prev_state_root, account_proofs, storage_proofs, blob
// commitment, chain_id), plus the signer and fixed-contract set needed to
// classify and execute transactions.
type Input struct {
	Blocks         []Block
	PrevStateRoot  common.Hash
	AccountProofs  []AccountProof
	StorageProofs  []StorageProof
	BlobCommitment []byte // empty for validium mode
	ChainID        *uint256.Int
	Signer         gtypes.Signer
	Contracts      Contracts
}

// StateTrieUpdater recomputes the state root after the guest program has
// applied a batch's dirty account/storage updates to an AppState (spec.md
// §4.H step 4: rebuild each dirty account's partial storage trie, apply
// its dirty slots, recompute and stamp back its storage root, then
// re-insert the updated account into the partial state trie and recompute
// its root). Concrete trie mutation is left to an injected implementation,
// the same external-collaborator boundary spec.md §1 draws around
// persistent state/trie internals — mirroring the sequencer's
// StateRootProvider (sequencer/sequencer.go).
type StateTrieUpdater interface {
	ApplyDirtyAccounts(state *AppState, dirty []common.Address) (newStateRoot common.Hash, err error)
}

// Output is spec.md §4.H step 7's ProgramOutput.
type Output struct {
	InitialStateHash         common.Hash
	FinalStateHash           common.Hash
	L1OutMessagesMerkleRoot  common.Hash
	L1InMessagesRollingHash  common.Hash
	L2InMessageRollingHashes []types.L2InMessageHash
	BlobVersionedHash        common.Hash
	LastBlockHash            common.Hash
	ChainID                  *uint256.Int
	NonPrivilegedCount       uint64
	BalanceDiffs             []types.BalanceDiff
}

// Execute runs the guest program's full flow (spec.md §4.H steps 1-7) over
// input, delegating application-specific operations to circuit and new
// state root computation to updater.
func Execute(input Input, circuit AppCircuit, updater StateTrieUpdater) (*Output, error) {
	if len(input.Blocks) == 0 {
		return nil, ErrEmptyBatch
	}
	if input.Signer == nil || circuit == nil || updater == nil {
		return nil, ErrInvalidParams
	}

	// Steps 1-2: build + verify AppState against prev_state_root.
	state, err := BuildAppState(input.PrevStateRoot, input.AccountProofs, input.StorageProofs)
	if err != nil {
		return nil, &AppStateError{Err: err}
	}

	preBalances := snapshotBalances(state)

	var l1OutMessages []common.Hash
	l1In := newRollingHash()
	var l2InHashes []types.L2InMessageHash
	var nonPrivileged uint64
	var lastBlockHash common.Hash

	// Step 3: execute every transaction in every block.
	for _, block := range input.Blocks {
		l2In := newRollingHash()
		for _, tx := range block.Txs {
			logs, privileged, err := executeGuestTx(state, circuit, input.Contracts, block, tx, input.Signer)
			if err != nil {
				return nil, err
			}
			if privileged {
				l1In.absorb(tx.Hash())
			} else {
				nonPrivileged++
			}
			for _, l := range logs {
				h := hashLog(l)
				switch l.Address {
				case input.Contracts.L2Messenger:
					l1OutMessages = append(l1OutMessages, h)
				case input.Contracts.CommonBridge:
					l2In.absorb(h)
				}
			}
		}
		l2InHashes = append(l2InHashes, types.L2InMessageHash{BlockNumber: block.Number, Hash: l2In.sum()})
		lastBlockHash = block.Hash
	}

	// Step 4: recompute the new state root from this batch's dirty
	// accounts, delegated to updater.
	newRoot, err := updater.ApplyDirtyAccounts(state, state.DirtyAccounts())
	if err != nil {
		return nil, &AppStateError{Err: err}
	}

	// Step 6: blob versioned hash (or zero in validium mode).
	blobHash, err := blobVersionedHash(input.BlobCommitment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBlob, err)
	}

	return &Output{
		InitialStateHash:         input.PrevStateRoot,
		FinalStateHash:           newRoot,
		L1OutMessagesMerkleRoot:  merkleRoot(l1OutMessages), // step 5
		L1InMessagesRollingHash:  l1In.sum(),                // step 5
		L2InMessageRollingHashes: l2InHashes,                // step 5
		BlobVersionedHash:        blobHash,
		LastBlockHash:            lastBlockHash,
		ChainID:                  input.ChainID,
		NonPrivilegedCount:       nonPrivileged,
		BalanceDiffs:             diffBalances(state, preBalances), // step 7
	}, nil
}

// executeGuestTx implements spec.md §4.H step 3 for one transaction,
// returning the logs it produced and whether it was privileged.
func executeGuestTx(state *AppState, circuit AppCircuit, contracts Contracts, block Block, tx *types.Transaction, signer gtypes.Signer) ([]types.Log, bool, error) {
	if tx.Privileged {
		if tx.Kind().IsCreate() {
			return nil, true, ErrContractCreationNotAllowed
		}
		valueU, overflow := uint256.FromBig(tx.Value())
		if overflow {
			return nil, true, ErrInvalidParams
		}
		creditBalance(state, tx.Kind().Address, valueU)
		return nil, true, nil
	}

	sender, err := gtypes.Sender(signer, tx.Transaction)
	if err != nil {
		return nil, false, ErrInvalidSignature
	}

	if tx.Kind().IsCreate() {
		return nil, false, ErrContractCreationNotAllowed
	}

	senderAcc := state.EnsureAccount(sender)
	if tx.Nonce() != senderAcc.Nonce {
		return nil, false, ErrBlockValidation
	}
	senderAcc.Nonce++
	senderAcc.touch()

	to := tx.Kind().Address
	effectiveGasPrice, err := tx.EffectiveGasPrice(block.BaseFee)
	if err != nil {
		return nil, false, ErrInvalidParams
	}

	var logs []types.Log
	var gasUsed uint64

	switch {
	case len(tx.Data()) == 0:
		valueU, overflow := uint256.FromBig(tx.Value())
		if overflow {
			return nil, false, ErrInvalidParams
		}
		debitBalance(state, sender, valueU)
		creditBalance(state, to, valueU)
		gasUsed = GasETHTransfer

	case to == contracts.Withdrawal:
		valueU, overflow := uint256.FromBig(tx.Value())
		if overflow {
			return nil, false, ErrInvalidParams
		}
		debitBalance(state, sender, valueU) // burn: the value leaves L2 circulation
		gasUsed = GasWithdrawal

	case contracts.IsSystem(to):
		gasUsed = GasSystemCall

	default:
		op, err := circuit.ClassifyTx(tx)
		if err != nil {
			return nil, false, ErrUnknownTransaction
		}
		opLogs, err := circuit.ExecuteOperation(state, op, tx)
		if err != nil {
			return nil, false, err
		}
		logs = opLogs
		gasUsed = circuit.GasCost(op)
	}

	applyFees(state, sender, block.Coinbase, block.FeeConfig, gasUsed, effectiveGasPrice, block.BaseFee)

	return logs, false, nil
}

func snapshotBalances(state *AppState) map[common.Address]*uint256.Int {
	out := make(map[common.Address]*uint256.Int, len(state.Accounts))
	for addr, acc := range state.Accounts {
		b := *acc.Balance
		out[addr] = &b
	}
	return out
}

// diffBalances compares every account's balance at the end of the batch
// against its balance at the start (zero for an account that did not
// exist yet), the guest program's half of the conservation property
// the sequencer's balanceDiffsFromBAL establishes for block execution.
func diffBalances(state *AppState, pre map[common.Address]*uint256.Int) []types.BalanceDiff {
	var diffs []types.BalanceDiff
	for addr, acc := range state.Accounts {
		before, ok := pre[addr]
		if !ok {
			before = uint256.NewInt(0)
		}
		switch acc.Balance.Cmp(before) {
		case 0:
			continue
		case 1:
			diffs = append(diffs, types.BalanceDiff{Address: addr, Delta: new(uint256.Int).Sub(acc.Balance, before)})
		default:
			diffs = append(diffs, types.BalanceDiff{Address: addr, Delta: new(uint256.Int).Sub(before, acc.Balance), Negative: true})
		}
	}
	sort.Slice(diffs, func(i, j int) bool {
		return bytes.Compare(diffs[i].Address.Bytes(), diffs[j].Address.Bytes()) < 0
	})
	return diffs
}
