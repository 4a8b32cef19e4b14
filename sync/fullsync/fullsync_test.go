// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fullsync

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/network/ethwire"
)

// chain is a small in-memory header chain keyed by number, used to build
// fakeHeaderFetcher/fakeBodyFetcher responses for a test.
type chain struct {
	headers []*types.Header // index 0 is genesis, oldest-first
}

func newChain(n int) *chain {
	c := &chain{}
	parent := common.Hash{}
	for i := 0; i < n; i++ {
		h := &types.Header{Number: big.NewInt(int64(i)), ParentHash: parent}
		c.headers = append(c.headers, h)
		parent = h.Hash()
	}
	return c
}

func (c *chain) byHash(hash common.Hash) (*types.Header, int) {
	for i, h := range c.headers {
		if h.Hash() == hash {
			return h, i
		}
	}
	return nil, -1
}

func (c *chain) head() *types.Header { return c.headers[len(c.headers)-1] }

type fakeHeaderFetcher struct{ c *chain }

// RequestHeaders returns up to amount headers at or before origin, newest
// first, matching full sync's Reverse=true request.
func (f *fakeHeaderFetcher) RequestHeaders(_ context.Context, origin ethwire.HashOrNumber, amount uint64) ([]*types.Header, error) {
	_, idx := f.c.byHash(origin.Hash)
	if idx < 0 {
		return nil, nil
	}
	var out []*types.Header
	for i := idx; i >= 0 && uint64(len(out)) < amount; i-- {
		out = append(out, f.c.headers[i])
	}
	return out, nil
}

type fakeBodyFetcher struct{ c *chain }

func (f *fakeBodyFetcher) RequestBodies(_ context.Context, hashes []common.Hash) ([]*ethwire.BlockBody, error) {
	out := make([]*ethwire.BlockBody, 0, len(hashes))
	for _, h := range hashes {
		if _, idx := f.c.byHash(h); idx >= 0 {
			out = append(out, &ethwire.BlockBody{})
		}
	}
	return out, nil
}

// fakeStore treats any hash matching a header in canonical as canonical,
// and has no pending blocks unless seeded.
type fakeStore struct {
	mu         sync.Mutex
	canonical  map[common.Hash]bool
	pending    map[common.Hash]*types.Block
	forkchoice []NumberHash
	lastNumber uint64
	lastHash   common.Hash
	invalid    map[common.Hash]common.Hash
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		canonical: make(map[common.Hash]bool),
		pending:   make(map[common.Hash]*types.Block),
		invalid:   make(map[common.Hash]common.Hash),
	}
}

func (s *fakeStore) IsCanonical(_ context.Context, hash common.Hash) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canonical[hash], nil
}

func (s *fakeStore) PendingBlock(_ context.Context, hash common.Hash) (*types.Block, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.pending[hash]
	return b, ok, nil
}

func (s *fakeStore) SetLatestValidAncestor(_ context.Context, hash, lastValidHash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalid[hash] = lastValidHash
	return nil
}

func (s *fakeStore) ForkchoiceUpdate(_ context.Context, chain []NumberHash, lastNumber uint64, lastHash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forkchoice = append(s.forkchoice, chain...)
	for _, nh := range chain {
		s.canonical[nh.Hash] = true
	}
	s.lastNumber = lastNumber
	s.lastHash = lastHash
	return nil
}

type fakeExecutor struct {
	mu       sync.Mutex
	executed [][]common.Hash
	failAt   common.Hash
	lastGood common.Hash
}

func (e *fakeExecutor) ExecuteBatch(_ context.Context, blocks []*types.Block, sequential bool) (*BatchFailure, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var hashes []common.Hash
	for _, b := range blocks {
		hashes = append(hashes, b.Hash())
		if e.failAt != (common.Hash{}) && b.Hash() == e.failAt {
			e.executed = append(e.executed, hashes)
			return &BatchFailure{FailedBlockHash: e.failAt, LastValidBlockHash: e.lastGood}, nil
		}
	}
	e.executed = append(e.executed, hashes)
	return nil, nil
}

func TestSyncExecutesHeaderRangeAndUpdatesForkchoice(t *testing.T) {
	c := newChain(5) // blocks 0..4, 0 already canonical (genesis)
	store := newFakeStore()
	store.canonical[c.headers[0].Hash()] = true

	exec := &fakeExecutor{}
	d := New(Config{ExecuteBatchSize: 2, MaxBlockBodiesPerRequest: 10, MaxHeaderFetchAttempts: 2},
		nil, &fakeHeaderFetcher{c: c}, &fakeBodyFetcher{c: c}, store, exec)

	require.NoError(t, d.Sync(context.Background(), c.head().Hash()))

	require.Equal(t, c.head().Hash(), store.lastHash)
	require.Equal(t, c.head().NumberU64(), store.lastNumber)
	require.True(t, store.canonical[c.headers[4].Hash()])
	require.True(t, store.canonical[c.headers[1].Hash()])
}

func TestSyncExecutesPendingAncestorsSequentially(t *testing.T) {
	c := newChain(3) // 0 canonical, 1 and 2 locally pending but not canonical
	store := newFakeStore()
	store.canonical[c.headers[0].Hash()] = true

	b1 := types.NewBlockWithHeader(c.headers[1]).WithBody(nil, nil)
	b2 := types.NewBlockWithHeader(c.headers[2]).WithBody(nil, nil)
	store.pending[c.headers[1].Hash()] = b1
	store.pending[c.headers[2].Hash()] = b2

	exec := &fakeExecutor{}
	// The header fetcher has nothing beyond what's already pending locally,
	// so RequestHeaders resolves to the canonical genesis immediately.
	d := New(Config{ExecuteBatchSize: 10, MaxBlockBodiesPerRequest: 10, MaxHeaderFetchAttempts: 2},
		nil, &fakeHeaderFetcher{c: c}, &fakeBodyFetcher{c: c}, store, exec)

	require.NoError(t, d.Sync(context.Background(), c.headers[2].Hash()))

	require.NotEmpty(t, exec.executed)
	last := exec.executed[len(exec.executed)-1]
	require.Equal(t, []common.Hash{c.headers[1].Hash(), c.headers[2].Hash()}, last)
}

func TestSyncMarksDescendantsOnExecutionFailure(t *testing.T) {
	c := newChain(4) // 0 canonical, want to sync to 3
	store := newFakeStore()
	store.canonical[c.headers[0].Hash()] = true

	exec := &fakeExecutor{failAt: c.headers[2].Hash(), lastGood: c.headers[1].Hash()}
	d := New(Config{ExecuteBatchSize: 10, MaxBlockBodiesPerRequest: 10, MaxHeaderFetchAttempts: 2},
		nil, &fakeHeaderFetcher{c: c}, &fakeBodyFetcher{c: c}, store, exec)

	require.NoError(t, d.Sync(context.Background(), c.head().Hash()))

	require.Equal(t, c.headers[1].Hash(), store.invalid[c.headers[2].Hash()])
	require.Equal(t, c.headers[1].Hash(), store.invalid[c.headers[3].Hash()])
	require.False(t, store.canonical[c.headers[2].Hash()])
	require.Empty(t, store.forkchoice)
}

func TestSyncNoOpWhenAlreadyCanonical(t *testing.T) {
	c := newChain(2)
	store := newFakeStore()
	store.canonical[c.headers[0].Hash()] = true
	store.canonical[c.headers[1].Hash()] = true

	exec := &fakeExecutor{}
	d := New(Config{}, nil, &fakeHeaderFetcher{c: c}, &fakeBodyFetcher{c: c}, store, exec)

	require.NoError(t, d.Sync(context.Background(), c.headers[1].Hash()))
	require.Empty(t, exec.executed)
	require.Empty(t, store.forkchoice)
}
