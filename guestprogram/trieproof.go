// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guestprogram

import (
	"bytes"
	"errors"

	"github.com/luxfi/geth/crypto"
	"github.com/luxfi/geth/rlp"
)

// ErrMpt is the guest program's Mpt failure kind (spec.md §4.H's failure
// taxonomy): a supplied proof does not chain to the expected root.
var ErrMpt = errors.New("guestprogram: proof does not verify against the expected root")

// toNibbles expands bytes into the trie's half-byte path alphabet.
func toNibbles(b []byte) []byte {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = v >> 4
		out[i*2+1] = v & 0x0f
	}
	return out
}

// hexPrefixDecode decodes a leaf/extension node's compact-encoded partial
// path (the standard Ethereum MPT hex-prefix encoding) into nibbles, and
// reports whether the node is a leaf (terminator bit set).
func hexPrefixDecode(compact []byte) (path []byte, isLeaf bool) {
	if len(compact) == 0 {
		return nil, false
	}
	n := toNibbles(compact)
	isLeaf = n[0]&0x2 != 0
	if n[0]&0x1 != 0 {
		return n[1:], isLeaf
	}
	return n[2:], isLeaf
}

// verifyProof walks a root-to-leaf chain of RLP-encoded trie nodes against
// expectedRoot and key, mirroring original_source's incremental_mpt.rs
// build_trie_from_proofs/get approach without depending on a full external
// trie implementation: every node in proof must hash to the value its
// parent referenced, and the path nibbles must lead to a terminal leaf or
// an empty branch slot.
//
// It returns the stored value (nil if the proof demonstrates the key's
// absence) or ErrMpt if proof does not chain correctly.
func verifyProof(expectedRoot []byte, key []byte, proof [][]byte) ([]byte, error) {
	if len(expectedRoot) == 0 || len(proof) == 0 {
		return nil, ErrMpt
	}
	path := toNibbles(key)
	want := expectedRoot

	for i, raw := range proof {
		if got := crypto.Keccak256(raw); !bytes.Equal(got, want) {
			return nil, ErrMpt
		}

		var list []rlp.RawValue
		if err := rlp.DecodeBytes(raw, &list); err != nil {
			return nil, ErrMpt
		}

		switch len(list) {
		case 17:
			if len(path) == 0 {
				var value []byte
				if err := rlp.DecodeBytes(list[16], &value); err != nil {
					return nil, ErrMpt
				}
				return value, nil
			}
			nibble := path[0]
			path = path[1:]
			var child []byte
			if err := rlp.DecodeBytes(list[nibble], &child); err != nil {
				return nil, ErrMpt
			}
			if len(child) == 0 {
				return nil, nil
			}
			want = child

		case 2:
			var compact []byte
			if err := rlp.DecodeBytes(list[0], &compact); err != nil {
				return nil, ErrMpt
			}
			partial, isLeaf := hexPrefixDecode(compact)
			if len(path) < len(partial) || !bytes.Equal(path[:len(partial)], partial) {
				return nil, nil
			}
			path = path[len(partial):]
			if isLeaf {
				if len(path) != 0 {
					return nil, ErrMpt
				}
				var value []byte
				if err := rlp.DecodeBytes(list[1], &value); err != nil {
					return nil, ErrMpt
				}
				return value, nil
			}
			var child []byte
			if err := rlp.DecodeBytes(list[1], &child); err != nil {
				return nil, ErrMpt
			}
			want = child

		default:
			return nil, ErrMpt
		}

		if i == len(proof)-1 && len(path) != 0 {
			return nil, ErrMpt
		}
	}
	return nil, ErrMpt
}
