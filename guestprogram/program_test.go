// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guestprogram

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/crypto"
	gtypes "github.com/luxfi/geth/core/types"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/rollup/core/types"
)

// stubCircuit recognizes no operations; every test transaction here falls
// through a fixed path (empty-data transfer) so the circuit is never
// actually invoked.
type stubCircuit struct{}

func (stubCircuit) ClassifyTx(*types.Transaction) (string, error) {
	return "", ErrUnknownTransaction
}
func (stubCircuit) ExecuteOperation(*AppState, string, *types.Transaction) ([]types.Log, error) {
	return nil, nil
}
func (stubCircuit) GasCost(string) uint64 { return 0 }

// stubUpdater stands in for the real trie-mutation collaborator (spec.md
// §1 treats trie internals as external); it returns a fixed root so tests
// can assert the rest of the pipeline without implementing step 4.
type stubUpdater struct {
	root common.Hash
}

func (u stubUpdater) ApplyDirtyAccounts(*AppState, []common.Address) (common.Hash, error) {
	return u.root, nil
}

func TestExecuteETHTransferConservesBalance(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)
	recipient := common.Address{0xBE, 0xEF}
	coinbase := common.Address{0xC0, 0xFF, 0xEE}

	senderAcc := accountRLP{Nonce: 0, Balance: big.NewInt(10_000_000_000_000_000), StorageRoot: emptyRootHash}
	root, leaf := singleAccountTrie(t, sender, senderAcc)

	signer := gtypes.HomesteadSigner{}
	signed, err := gtypes.SignNewTx(key, signer, &gtypes.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      21000,
		To:       &recipient,
		Value:    big.NewInt(1_000_000_000_000_000),
	})
	require.NoError(t, err)
	tx := types.NewTransaction(signed, false)

	block := Block{
		Number:   1,
		Hash:     common.Hash{0x01},
		Txs:      []*types.Transaction{tx},
		Coinbase: coinbase,
	}
	input := Input{
		Blocks:        []Block{block},
		PrevStateRoot: root,
		AccountProofs: []AccountProof{{Address: sender, Nodes: [][]byte{leaf}}},
		ChainID:       uint256.NewInt(1),
		Signer:        signer,
	}

	out, err := Execute(input, stubCircuit{}, stubUpdater{root: common.Hash{0xAA}})
	require.NoError(t, err)
	require.Equal(t, common.Hash{0xAA}, out.FinalStateHash)
	require.Equal(t, root, out.InitialStateHash)
	require.Equal(t, uint64(1), out.NonPrivilegedCount)
	require.Equal(t, block.Hash, out.LastBlockHash)
	require.Equal(t, common.Hash{}, out.BlobVersionedHash) // validium: no commitment supplied

	require.Len(t, out.BalanceDiffs, 3) // sender debited, recipient + coinbase credited

	var senderDelta, recipientDelta, coinbaseDelta *uint256.Int
	for i := range out.BalanceDiffs {
		d := out.BalanceDiffs[i]
		switch d.Address {
		case sender:
			require.True(t, d.Negative)
			senderDelta = d.Delta
		case recipient:
			require.False(t, d.Negative)
			recipientDelta = d.Delta
		case coinbase:
			require.False(t, d.Negative)
			coinbaseDelta = d.Delta
		}
	}
	require.NotNil(t, senderDelta)
	require.NotNil(t, recipientDelta)
	require.NotNil(t, coinbaseDelta)

	sumOut := new(uint256.Int).Add(recipientDelta, coinbaseDelta)
	require.Equal(t, senderDelta, sumOut, "everything debited from the sender must land on the recipient or the coinbase")
}

func TestExecuteRejectsEmptyBatch(t *testing.T) {
	_, err := Execute(Input{}, stubCircuit{}, stubUpdater{})
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestExecutePrivilegedTxCreditsWithoutNonce(t *testing.T) {
	recipient := common.Address{0xD0, 0x01}
	depositTx := gtypes.NewTx(&gtypes.LegacyTx{To: &recipient, Value: big.NewInt(42)})
	tx := types.NewTransaction(depositTx, true)

	block := Block{Number: 1, Hash: common.Hash{0x02}, Txs: []*types.Transaction{tx}}
	input := Input{
		Blocks:        []Block{block},
		PrevStateRoot: common.Hash{}, // no account proofs supplied: a deposit can still credit a fresh address
		ChainID:       uint256.NewInt(1),
		Signer:        gtypes.HomesteadSigner{},
	}

	out, err := Execute(input, stubCircuit{}, stubUpdater{root: common.Hash{0xBB}})
	require.NoError(t, err)
	require.Equal(t, uint64(0), out.NonPrivilegedCount)
	require.Len(t, out.BalanceDiffs, 1)
	require.Equal(t, recipient, out.BalanceDiffs[0].Address)
	require.False(t, out.BalanceDiffs[0].Negative)
}
