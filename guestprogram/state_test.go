// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guestprogram

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/crypto"
	"github.com/luxfi/geth/rlp"
	"github.com/stretchr/testify/require"
)

// hpEncode is the standard Ethereum MPT hex-prefix encoding, the inverse
// of hexPrefixDecode in trieproof.go; used here only to construct proof
// fixtures, never by the production verification path.
func hpEncode(nibbles []byte, isLeaf bool) []byte {
	term := byte(0)
	if isLeaf {
		term = 2
	}
	oddLen := len(nibbles) % 2
	flag := term + byte(oddLen)
	var out []byte
	if oddLen == 1 {
		out = append(out, flag<<4|nibbles[0])
		nibbles = nibbles[1:]
	} else {
		out = append(out, flag<<4)
	}
	for i := 0; i < len(nibbles); i += 2 {
		out = append(out, nibbles[i]<<4|nibbles[i+1])
	}
	return out
}

// singleAccountTrie builds a one-leaf state trie (its root node is the
// account's own leaf node) committing addr -> acc, returning the root hash
// and that leaf's RLP encoding as the sole proof node.
func singleAccountTrie(t *testing.T, addr common.Address, acc accountRLP) (common.Hash, []byte) {
	t.Helper()
	path := toNibbles(secureKey(addr.Bytes()))
	value, err := rlp.EncodeToBytes(&acc)
	require.NoError(t, err)
	leaf, err := rlp.EncodeToBytes([]interface{}{hpEncode(path, true), value})
	require.NoError(t, err)
	return common.BytesToHash(crypto.Keccak256(leaf)), leaf
}

func TestBuildAppStateVerifiesAccountProof(t *testing.T) {
	addr := common.Address{0x01}
	acc := accountRLP{Nonce: 3, Balance: big.NewInt(1_000_000), StorageRoot: emptyRootHash}
	root, leaf := singleAccountTrie(t, addr, acc)

	state, err := BuildAppState(root, []AccountProof{{Address: addr, Nodes: [][]byte{leaf}}}, nil)
	require.NoError(t, err)

	got := state.Account(addr)
	require.NotNil(t, got)
	require.Equal(t, uint64(3), got.Nonce)
	require.Equal(t, uint256.NewInt(1_000_000), got.Balance)
	require.Equal(t, emptyRootHash, got.StorageRoot)
}

func TestBuildAppStateRejectsWrongRoot(t *testing.T) {
	addr := common.Address{0x02}
	acc := accountRLP{Nonce: 1, Balance: big.NewInt(1), StorageRoot: emptyRootHash}
	_, leaf := singleAccountTrie(t, addr, acc)

	_, err := BuildAppState(common.Hash{0xFF}, []AccountProof{{Address: addr, Nodes: [][]byte{leaf}}}, nil)
	require.ErrorIs(t, err, ErrMpt)
}

func TestAppStateDirtyAccountsTracksTouches(t *testing.T) {
	addr := common.Address{0x03}
	acc := accountRLP{Nonce: 0, Balance: big.NewInt(5), StorageRoot: emptyRootHash}
	root, leaf := singleAccountTrie(t, addr, acc)

	state, err := BuildAppState(root, []AccountProof{{Address: addr, Nodes: [][]byte{leaf}}}, nil)
	require.NoError(t, err)
	require.Empty(t, state.DirtyAccounts())

	state.Account(addr).touch()
	require.Equal(t, []common.Address{addr}, state.DirtyAccounts())
}
