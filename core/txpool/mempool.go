// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package txpool is the rollup's mempool (spec.md §4.B): a single
// lock-protected structure shared by RPC submission, the sequencer's block
// producer, and the P2P transaction broadcaster, with a companion
// notification primitive that wakes anyone awaiting new arrivals.
package txpool

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	gtypes "github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/rollup/core/types"
)

// ErrUnderpricedReplacement is returned by FindTxToReplace when a
// transaction already occupies (sender, nonce) and the candidate does not
// strictly outprice it.
var ErrUnderpricedReplacement = errors.New("txpool: underpriced replacement")

// Config bounds the mempool's size. PruneThreshold follows directly from
// MaxSize per spec.md §3 ("prune_threshold = max_size + max_size/2").
type Config struct {
	MaxSize uint64
}

func (c Config) pruneThreshold() uint64 { return c.MaxSize + c.MaxSize/2 }

// Filter selects which pending transactions filter_transactions returns.
type Filter struct {
	MinTip    *uint256.Int
	BaseFee   *uint256.Int
	BlobFee   *uint256.Int
	OnlyPlain bool
	OnlyBlob  bool
}

type senderNonce struct {
	sender common.Address
	nonce  uint64
}

// Mempool is the process-wide shared mempool state described in spec.md §3.
type Mempool struct {
	cfg Config
	log log.Logger

	mu             sync.RWMutex
	byHash         map[common.Hash]*types.MempoolTransaction
	bySenderNonce  map[senderNonce]common.Hash
	broadcastSet   map[common.Hash]struct{}
	insertionOrder []common.Hash
	blobsBundles   map[common.Hash]*types.BlobsBundle

	notifyMu sync.Mutex
	notifyCh chan struct{}

	metrics *mempoolMetrics
}

// mempoolMetrics mirrors the teacher's utils/metered_cache.go pattern:
// gauges/counters are only allocated when a namespace is registered, so an
// unmetered Mempool pays nothing for them.
type mempoolMetrics struct {
	size      metric.Gauge
	additions metric.Counter
	evictions metric.Counter
}

// New builds an empty Mempool.
func New(cfg Config, logger log.Logger) *Mempool {
	return &Mempool{
		cfg:            cfg,
		log:            logger,
		byHash:         make(map[common.Hash]*types.MempoolTransaction),
		bySenderNonce:  make(map[senderNonce]common.Hash),
		broadcastSet:   make(map[common.Hash]struct{}),
		insertionOrder: make([]common.Hash, 0, cfg.MaxSize),
		blobsBundles:   make(map[common.Hash]*types.BlobsBundle),
		notifyCh:       make(chan struct{}),
	}
}

// EnableMetrics registers size/addition/eviction instrumentation under
// namespace. Safe to call at most once; a Mempool with no namespace
// registered stays unmetered.
func (m *Mempool) EnableMetrics(namespace string) {
	if namespace == "" {
		return
	}
	m.metrics = &mempoolMetrics{
		size:      metric.NewGauge(metric.GaugeOpts{Name: namespace + "/size", Help: "pooled transaction count"}),
		additions: metric.NewCounter(metric.CounterOpts{Name: namespace + "/additions", Help: "transactions added"}),
		evictions: metric.NewCounter(metric.CounterOpts{Name: namespace + "/evictions", Help: "transactions evicted for capacity"}),
	}
}

// AddTransaction inserts an already-validated transaction into every index,
// evicting the oldest entry by insertion order if the pool would exceed
// MaxSize, and compacting insertionOrder once it grows past prune_threshold.
// Waiters are notified only after the write lock is released.
func (m *Mempool) AddTransaction(hash common.Hash, sender common.Address, tx *types.MempoolTransaction) {
	m.mu.Lock()
	key := senderNonce{sender: sender, nonce: tx.Tx.Nonce()}
	if old, ok := m.bySenderNonce[key]; ok {
		m.removeLocked(old)
	}
	if uint64(len(m.byHash)) >= m.cfg.MaxSize {
		m.evictOldestLocked()
	}
	m.byHash[hash] = tx
	m.bySenderNonce[key] = hash
	m.broadcastSet[hash] = struct{}{}
	m.insertionOrder = append(m.insertionOrder, hash)
	if uint64(len(m.insertionOrder)) > m.cfg.pruneThreshold() {
		m.compactInsertionOrderLocked()
	}
	size := len(m.byHash)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.additions.Add(1)
		m.metrics.size.Set(float64(size))
	}
	m.notify()
}

// evictOldestLocked drops the oldest still-live entry from insertionOrder.
// Stale entries (already removed by a replacement) are skipped rather than
// treated as the eviction victim.
func (m *Mempool) evictOldestLocked() {
	for len(m.insertionOrder) > 0 {
		hash := m.insertionOrder[0]
		m.insertionOrder = m.insertionOrder[1:]
		if _, ok := m.byHash[hash]; ok {
			m.removeLocked(hash)
			if m.log != nil {
				m.log.Debug("evicted mempool transaction", "hash", hash)
			}
			if m.metrics != nil {
				m.metrics.evictions.Add(1)
			}
			return
		}
	}
}

// removeLocked deletes hash from every index simultaneously, per spec.md
// §4.B's invariant that eviction/replacement never leaves indices
// inconsistent.
func (m *Mempool) removeLocked(hash common.Hash) {
	tx, ok := m.byHash[hash]
	if !ok {
		return
	}
	delete(m.byHash, hash)
	delete(m.bySenderNonce, senderNonce{sender: tx.Sender, nonce: tx.Tx.Nonce()})
	delete(m.broadcastSet, hash)
	delete(m.blobsBundles, hash)
}

func (m *Mempool) compactInsertionOrderLocked() {
	compacted := m.insertionOrder[:0]
	for _, hash := range m.insertionOrder {
		if _, ok := m.byHash[hash]; ok {
			compacted = append(compacted, hash)
		}
	}
	m.insertionOrder = compacted
}

// FindTxToReplace reports the hash occupying (sender, nonce), if any. If one
// exists and newTx does not strictly outprice it (per spec.md §4.B's rule),
// ErrUnderpricedReplacement is returned; the caller must not insert newTx in
// that case.
func (m *Mempool) FindTxToReplace(sender common.Address, nonce uint64, newTx *types.Transaction) (common.Hash, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash, ok := m.bySenderNonce[senderNonce{sender: sender, nonce: nonce}]
	if !ok {
		return common.Hash{}, false, nil
	}
	old, ok := m.byHash[hash]
	if !ok {
		return common.Hash{}, false, nil
	}
	if !strictlyOutpriced(old.Tx, newTx) {
		return common.Hash{}, false, ErrUnderpricedReplacement
	}
	return hash, true, nil
}

// strictlyOutpriced implements spec.md §4.B's replacement rule: for
// EIP-4844, the new blob fee cap, max fee and max priority fee must all
// exceed the old ones; for EIP-1559-style
// transactions, both the max fee and max priority fee must exceed the old
// ones; for legacy transactions, the gas price must exceed the old one.
func strictlyOutpriced(old, candidate *types.Transaction) bool {
	switch candidate.Type() {
	case gtypes.BlobTxType:
		return candidate.BlobGasFeeCap().Cmp(old.BlobGasFeeCap()) > 0 &&
			candidate.GasFeeCap().Cmp(old.GasFeeCap()) > 0 &&
			candidate.GasTipCap().Cmp(old.GasTipCap()) > 0
	case gtypes.LegacyTxType:
		return candidate.GasPrice().Cmp(old.GasPrice()) > 0
	default:
		return candidate.GasFeeCap().Cmp(old.GasFeeCap()) > 0 &&
			candidate.GasTipCap().Cmp(old.GasTipCap()) > 0
	}
}

// GetNonce returns the highest nonce present for addr, plus one, or false if
// addr has no transactions in the pool.
func (m *Mempool) GetNonce(addr common.Address) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		highest uint64
		found   bool
	)
	for key := range m.bySenderNonce {
		if key.sender != addr {
			continue
		}
		if !found || key.nonce > highest {
			highest, found = key.nonce, true
		}
	}
	if !found {
		return 0, false
	}
	return highest + 1, true
}

// ContainsSenderNonce reports whether (sender, nonce) is occupied by a hash
// other than receivedHash, letting callers detect duplicate announcements
// without self-matching.
func (m *Mempool) ContainsSenderNonce(sender common.Address, nonce uint64, receivedHash common.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hash, ok := m.bySenderNonce[senderNonce{sender: sender, nonce: nonce}]
	return ok && hash != receivedHash
}

// FilterTransactions returns pending transactions grouped by sender and
// sorted by nonce ascending, keeping only those the filter accepts. A
// transaction with no effective tip under filter.BaseFee is always
// rejected.
func (m *Mempool) FilterTransactions(filter Filter) map[common.Address][]*types.MempoolTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[common.Address][]*types.MempoolTransaction)
	for _, mtx := range m.byHash {
		isBlob := mtx.Tx.Type() == gtypes.BlobTxType
		if filter.OnlyPlain && isBlob {
			continue
		}
		if filter.OnlyBlob && !isBlob {
			continue
		}
		// EffectiveGasTip itself rejects a fee cap below the base fee, which
		// is exactly "no effective tip under the base fee" per spec.md §4.B.
		tip, err := mtx.Tx.EffectiveGasTip(filter.BaseFee)
		if err != nil {
			continue
		}
		if filter.MinTip != nil && tip.Cmp(filter.MinTip) < 0 {
			continue
		}
		if isBlob && filter.BlobFee != nil {
			if mtx.Tx.BlobGasFeeCap() == nil || mtx.Tx.BlobGasFeeCap().Sign() == 0 {
				continue
			}
			blobFeeCap, overflow := uint256.FromBig(mtx.Tx.BlobGasFeeCap())
			if overflow || blobFeeCap.Cmp(filter.BlobFee) < 0 {
				continue
			}
		}
		out[mtx.Sender] = append(out[mtx.Sender], mtx)
	}
	for _, txs := range out {
		sort.Slice(txs, func(i, j int) bool { return txs[i].Tx.Nonce() < txs[j].Tx.Nonce() })
	}
	return out
}

// GetTxsForBroadcast returns the hashes currently in broadcast_set.
func (m *Mempool) GetTxsForBroadcast() []common.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]common.Hash, 0, len(m.broadcastSet))
	for hash := range m.broadcastSet {
		out = append(out, hash)
	}
	return out
}

// RemoveBroadcastedTxs clears hashes from broadcast_set after the
// broadcaster has gossiped them.
func (m *Mempool) RemoveBroadcastedTxs(hashes []common.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, hash := range hashes {
		delete(m.broadcastSet, hash)
	}
}

// AddBlobsBundle stores the blob bundle for an EIP-4844 transaction.
func (m *Mempool) AddBlobsBundle(hash common.Hash, bundle *types.BlobsBundle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobsBundles[hash] = bundle
}

// GetBlobsBundle returns the blob bundle stored for hash, if any.
func (m *Mempool) GetBlobsBundle(hash common.Hash) (*types.BlobsBundle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobsBundles[hash]
	return b, ok
}

// Size returns (|by_hash|, 0): this mempool has no separate queued/blocked
// tier (unlike the nonce-gapped pending/queue split of a full node's
// txpool), so the second component is always zero, kept for parity with
// spec.md §8 scenario 1's get_mempool_size() shape.
func (m *Mempool) Size() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byHash), 0
}

// Has reports whether hash is currently pooled.
func (m *Mempool) Has(hash common.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byHash[hash]
	return ok
}

// Get returns the pooled transaction for hash, for PooledTransactions
// responses and broadcaster full-body sends.
func (m *Mempool) Get(hash common.Hash) (*types.MempoolTransaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mtx, ok := m.byHash[hash]
	return mtx, ok
}

// RemoveTransaction drops hash from every index. The block producer (4.F)
// calls this once a transaction has been included in a sealed block.
func (m *Mempool) RemoveTransaction(hash common.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(hash)
}

// notify wakes every goroutine blocked in AwaitTxAdded by closing the
// current notification channel and swapping in a fresh one, done strictly
// after AddTransaction has released its write lock.
func (m *Mempool) notify() {
	m.notifyMu.Lock()
	ch := m.notifyCh
	m.notifyCh = make(chan struct{})
	m.notifyMu.Unlock()
	close(ch)
}

// AwaitTxAdded blocks until at least one AddTransaction call has completed
// after this call began, or ctx is done. The block producer (4.F) uses this
// to idle instead of polling.
func (m *Mempool) AwaitTxAdded(ctx context.Context) error {
	m.notifyMu.Lock()
	ch := m.notifyCh
	m.notifyMu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
