// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guestprogram

import (
	"crypto/sha256"
	"errors"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/crypto"

	"github.com/luxfi/rollup/core/types"
)

// rollingHash implements the batch's l1_in / per-block l2_in message
// digests (spec.md §4.H step 5): an iterative keccak256(acc || next)
// accumulator, seeded at the zero hash, so messages commit to both their
// content and their relative order without requiring an intermediate
// Merkle structure.
type rollingHash struct {
	acc common.Hash
}

func newRollingHash() *rollingHash { return &rollingHash{} }

func (r *rollingHash) absorb(h common.Hash) {
	buf := make([]byte, 0, 64)
	buf = append(buf, r.acc.Bytes()...)
	buf = append(buf, h.Bytes()...)
	r.acc = common.BytesToHash(crypto.Keccak256(buf))
}

func (r *rollingHash) sum() common.Hash { return r.acc }

// hashLog commits to one event log's address, topics and data, the unit
// absorbed into the l1_out/l2_in message digests.
func hashLog(l types.Log) common.Hash {
	buf := make([]byte, 0, common.AddressLength+len(l.Topics)*common.HashLength+len(l.Data))
	buf = append(buf, l.Address.Bytes()...)
	for _, t := range l.Topics {
		buf = append(buf, t.Bytes()...)
	}
	buf = append(buf, l.Data...)
	return common.BytesToHash(crypto.Keccak256(buf))
}

// merkleRoot computes a binary Merkle root over leaves (keccak256 pairwise
// hashing, duplicating the last element at each level with an odd count),
// spec.md §4.H step 5's l1_out_messages_merkle_root. Returns the zero hash
// for an empty message list.
func merkleRoot(leaves []common.Hash) common.Hash {
	if len(leaves) == 0 {
		return common.Hash{}
	}
	level := leaves
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			buf := make([]byte, 0, 2*common.HashLength)
			buf = append(buf, left.Bytes()...)
			buf = append(buf, right.Bytes()...)
			next = append(next, common.BytesToHash(crypto.Keccak256(buf)))
		}
		level = next
	}
	return level[0]
}

// errBlobCommitmentSize is wrapped into program.go's ErrBlob when a
// non-empty commitment isn't a valid 48-byte KZG commitment.
var errBlobCommitmentSize = errors.New("guestprogram: blob commitment must be 48 bytes")

// blobVersionedHash computes the EIP-4844 versioned hash of a KZG
// commitment: the single leading version byte 0x01 followed by the low 31
// bytes of sha256(commitment). An empty commitment (validium mode, spec.md
// §4.H step 6) yields the zero hash. sha256 is used directly rather than
// through a KZG library, since the versioned-hash construction is a fixed,
// library-independent hash transform and no dependency in this module's
// stack wraps KZG commitment handling.
func blobVersionedHash(commitment []byte) (common.Hash, error) {
	if len(commitment) == 0 {
		return common.Hash{}, nil
	}
	if len(commitment) != 48 {
		return common.Hash{}, errBlobCommitmentSize
	}
	sum := sha256.Sum256(commitment)
	var out common.Hash
	out[0] = 0x01
	copy(out[1:], sum[1:])
	return out, nil
}
