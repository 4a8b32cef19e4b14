// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types defines the rollup-specific data model that sits on top of
// the standard Ethereum primitives supplied by github.com/luxfi/geth:
// transactions, mempool entries, batches, prover input, fee configuration
// and block access lists.
package types

import (
	"errors"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	gtypes "github.com/luxfi/geth/core/types"
)

// PrivilegedTxType tags an L1->L2 deposit. It is kept out of the standard
// geth tx-type range (0x0-0x4, 0x7702) the same way the teacher reserves
// distinct type bytes for chain-specific transactions in params/config_simplified.go.
const PrivilegedTxType = 0x7e

// ErrContractCreationNotAllowed is returned when a privileged or guest-program
// transaction attempts to create a contract; the rollup policy forbids it.
var ErrContractCreationNotAllowed = errors.New("contract creation not allowed for this transaction kind")

// TxKind is the destination of a transaction: either a call to an existing
// address, or contract creation.
type TxKind struct {
	Address common.Address
	create  bool
}

// CallTo builds a TxKind that targets an existing address.
func CallTo(addr common.Address) TxKind { return TxKind{Address: addr} }

// CreateKind builds a TxKind representing contract creation.
func CreateKind() TxKind { return TxKind{create: true} }

// IsCreate reports whether this TxKind creates a contract.
func (k TxKind) IsCreate() bool { return k.create }

// Transaction wraps a canonically-encoded geth transaction with the
// rollup-specific privileged flag. Hash, signature recovery, and RLP/SSZ
// encoding are all delegated to the embedded *gtypes.Transaction so that
// hash is a pure function of canonical encoding, per the spec's invariant.
type Transaction struct {
	*gtypes.Transaction

	// Privileged marks an L1->L2 deposit: the sender does not pay gas and
	// the transaction credits balances directly without incrementing nonce.
	Privileged bool
}

// NewTransaction wraps an already-built geth transaction.
func NewTransaction(tx *gtypes.Transaction, privileged bool) *Transaction {
	return &Transaction{Transaction: tx, Privileged: privileged}
}

// Kind reports the transaction's destination.
func (tx *Transaction) Kind() TxKind {
	if to := tx.To(); to != nil {
		return CallTo(*to)
	}
	return CreateKind()
}

// EffectiveGasTip returns the effective priority fee per gas given a base
// fee, matching EIP-1559 semantics: min(GasTipCap, GasFeeCap-baseFee) for
// dynamic-fee transactions, or GasPrice-baseFee for legacy ones.
func (tx *Transaction) EffectiveGasTip(baseFee *uint256.Int) (*uint256.Int, error) {
	gasFeeCap, overflow := uint256.FromBig(tx.GasFeeCap())
	if overflow {
		return nil, errors.New("gas fee cap overflows 256 bits")
	}
	gasTipCap, overflow := uint256.FromBig(tx.GasTipCap())
	if overflow {
		return nil, errors.New("gas tip cap overflows 256 bits")
	}
	if baseFee == nil || baseFee.IsZero() {
		return gasTipCap, nil
	}
	if gasFeeCap.Lt(baseFee) {
		return nil, errors.New("max fee per gas less than base fee")
	}
	headroom := new(uint256.Int).Sub(gasFeeCap, baseFee)
	if gasTipCap.Lt(headroom) {
		return gasTipCap, nil
	}
	return headroom, nil
}

// EffectiveGasPrice returns base fee plus the effective tip, the per-gas
// price the sender is actually debited.
func (tx *Transaction) EffectiveGasPrice(baseFee *uint256.Int) (*uint256.Int, error) {
	tip, err := tx.EffectiveGasTip(baseFee)
	if err != nil {
		return nil, err
	}
	if baseFee == nil {
		return tip, nil
	}
	return new(uint256.Int).Add(baseFee, tip), nil
}

// BlobsBundle is the KZG-commitment form of an EIP-4844 blob set. The
// network-wrapped form additionally carries the commitment/proof bytes and a
// wrapper-version discriminator: nil for forks at or before Prague, a
// pointer to 1 for later forks (see spec.md §6, "Blob-tx network form").
type BlobsBundle struct {
	Blobs       [][]byte
	Commitments [][]byte
	Proofs      [][]byte
	Version     *byte
}

// WrapperVersionForFork returns the wrapper_version value mandated for the
// given fork name.
func WrapperVersionForFork(fork string) *byte {
	if ForkAtOrBefore(fork, "prague") {
		return nil
	}
	v := byte(1)
	return &v
}

// MempoolTransaction is a Transaction plus its arrival timestamp, the unit
// stored in the mempool and ordered by (effective tip desc, arrival asc).
type MempoolTransaction struct {
	Tx      *Transaction
	Sender  common.Address
	Hash    common.Hash
	Arrival time.Time
}

// BalanceDiff is the unit recorded by both the block executor and the
// guest-program core's fee distribution, letting both paths be asserted
// against the same conservation property.
type BalanceDiff struct {
	Address common.Address
	Delta   *uint256.Int
	Negative bool
}
