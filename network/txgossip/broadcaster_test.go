// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txgossip

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	gtypes "github.com/luxfi/geth/core/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/luxfi/rollup/core/txpool"
	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/network/ethwire"
)

// TestMain fails the package's tests if any goroutine is still running once
// they finish. No test here starts Run, so Run's ticker goroutines are not
// covered by this check.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func legacyMempoolTx(nonce uint64, sender common.Address) *types.MempoolTransaction {
	tx := types.NewTransaction(gtypes.NewTx(&gtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: big.NewInt(1),
		Gas:      21000,
		To:       &common.Address{0xAA},
	}), false)
	return &types.MempoolTransaction{Tx: tx, Sender: sender, Hash: tx.Hash(), Arrival: time.Now()}
}

type fakePeer struct {
	id  common.Hash
	mu  sync.Mutex
	txs []ethwire.TransactionsPacket
	ann []*ethwire.NewPooledTransactionHashesPacket
}

func (p *fakePeer) ID() common.Hash        { return p.id }
func (p *fakePeer) HasEthCapability() bool { return true }
func (p *fakePeer) SendTransactions(_ context.Context, txs ethwire.TransactionsPacket) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txs = append(p.txs, txs)
	return nil
}
func (p *fakePeer) SendNewPooledTransactionHashes(_ context.Context, packet *ethwire.NewPooledTransactionHashesPacket) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ann = append(p.ann, packet)
	return nil
}

type fixedPeerSource struct{ peers []Peer }

func (f fixedPeerSource) Peers(context.Context) ([]Peer, error) { return f.peers, nil }

func TestBroadcastOnceSendsFullBodiesToSqrtPeers(t *testing.T) {
	pool := txpool.New(txpool.Config{MaxSize: 10}, nil)
	tx := legacyMempoolTx(0, common.Address{0x01})
	pool.AddTransaction(tx.Hash, tx.Sender, tx)

	peerA := &fakePeer{id: common.Hash{0xA1}}
	peerB := &fakePeer{id: common.Hash{0xB2}}
	b := New(Config{}, nil, pool, fixedPeerSource{peers: []Peer{peerA, peerB}})

	require.NoError(t, b.broadcastOnce(context.Background()))

	// ceil(sqrt(2)) == 2: both peers receive the full body in this case.
	require.Len(t, peerA.txs, 1)
	require.Len(t, peerA.txs[0], 1)
	require.Len(t, peerB.txs, 1)

	require.Empty(t, pool.GetTxsForBroadcast())
}

func TestBroadcastOnceSkipsPeersThatAlreadyKnow(t *testing.T) {
	pool := txpool.New(txpool.Config{MaxSize: 10}, nil)
	tx := legacyMempoolTx(0, common.Address{0x01})
	pool.AddTransaction(tx.Hash, tx.Sender, tx)

	peer := &fakePeer{id: common.Hash{0xA1}}
	b := New(Config{}, nil, pool, fixedPeerSource{peers: []Peer{peer}})

	require.NoError(t, b.broadcastOnce(context.Background()))
	require.Len(t, peer.txs, 1)

	// Re-pool the same transaction and broadcast again: the peer already
	// knows it, so no further send should occur.
	pool.AddTransaction(tx.Hash, tx.Sender, tx)
	require.NoError(t, b.broadcastOnce(context.Background()))
	require.Len(t, peer.txs, 1, "peer already knew this transaction")
}

func TestPruneDropsRecordsOlderThanWindow(t *testing.T) {
	pool := txpool.New(txpool.Config{MaxSize: 10}, nil)
	b := New(Config{PruneWindow: time.Millisecond}, nil, pool, fixedPeerSource{})

	hash := common.Hash{0x01}
	b.addTxs([]common.Hash{hash}, common.Hash{0xA1})
	require.Contains(t, b.knownTxs, hash)

	time.Sleep(2 * time.Millisecond)
	b.prune()
	require.NotContains(t, b.knownTxs, hash)
}
