// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fullsync implements spec.md §4.G's full sync: given a target
// sync_head, resolve any locally pending ancestors, fetch headers
// newest-to-oldest back to the local chain, then fetch bodies and execute
// blocks in fixed-size batches, finishing with a strictly sequential replay
// of the sync head and its pending ancestors so every intermediate state is
// stored. Grounded directly on
// original_source/crates/networking/p2p/sync/full.rs's sync_cycle_full,
// re-expressed with the same backoff.RetryNotifyWithData idiom
// sequencer/l1committer.go uses, here for the bounded header-fetch retry.
package fullsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/network/ethwire"
)

// ErrNoHeaders is returned when a header request comes back empty without
// error, which full sync treats as exhausting its retry budget rather than
// a protocol violation.
var ErrNoHeaders = errors.New("fullsync: peer returned no headers")

// ErrMissingBodies is returned when a body request returns fewer bodies
// than headers requested.
var ErrMissingBodies = errors.New("fullsync: peer did not return all requested bodies")

// HeaderFetcher requests a run of headers from a peer, newest-to-oldest,
// starting at origin.
type HeaderFetcher interface {
	RequestHeaders(ctx context.Context, origin ethwire.HashOrNumber, amount uint64) ([]*types.Header, error)
}

// BodyFetcher requests bodies for a list of header hashes, in the same
// order, skipping any the peer doesn't have.
type BodyFetcher interface {
	RequestBodies(ctx context.Context, hashes []common.Hash) ([]*ethwire.BlockBody, error)
}

// NumberHash pairs a block number with its hash, the unit ForkchoiceUpdate
// advances over.
type NumberHash struct {
	Number uint64
	Hash   common.Hash
}

// ChainStore is full sync's local-chain collaborator: canonical-chain
// membership, pending-block lookup, and the two durable writes a sync
// cycle performs (marking an invalid-ancestor chain, advancing
// forkchoice). Concrete storage wiring is injected, the same boundary
// spec.md §1 draws around persistent state.
type ChainStore interface {
	IsCanonical(ctx context.Context, hash common.Hash) (bool, error)
	// PendingBlock returns a block previously received but not yet
	// canonical, if store has one for hash.
	PendingBlock(ctx context.Context, hash common.Hash) (*types.Block, bool, error)
	SetLatestValidAncestor(ctx context.Context, hash, lastValidHash common.Hash) error
	ForkchoiceUpdate(ctx context.Context, chain []NumberHash, lastNumber uint64, lastHash common.Hash) error
}

// BatchFailure reports which block in an executed batch failed, and the
// last block before it that was valid.
type BatchFailure struct {
	FailedBlockHash    common.Hash
	LastValidBlockHash common.Hash
}

// BlockExecutor executes a run of assembled blocks and stores their
// resulting state. When sequential is true (the sync-head and pending
// ancestor tail, spec.md §4.G step 4) every block's state must be stored
// individually rather than only the batch's final state.
type BlockExecutor interface {
	ExecuteBatch(ctx context.Context, blocks []*types.Block, sequential bool) (*BatchFailure, error)
}

// Config bounds a sync cycle's batching and retry behavior.
type Config struct {
	ExecuteBatchSize         int
	MaxBlockBodiesPerRequest int
	MaxHeaderFetchAttempts   uint64
	HeaderRetryBaseDelay     time.Duration
	HeaderRetryMaxDelay      time.Duration
}

func (c Config) withDefaults() Config {
	if c.ExecuteBatchSize <= 0 {
		c.ExecuteBatchSize = 1024
	}
	if c.MaxBlockBodiesPerRequest <= 0 {
		c.MaxBlockBodiesPerRequest = 128
	}
	if c.MaxHeaderFetchAttempts <= 0 {
		c.MaxHeaderFetchAttempts = 10
	}
	if c.HeaderRetryBaseDelay <= 0 {
		c.HeaderRetryBaseDelay = 100 * time.Millisecond
	}
	if c.HeaderRetryMaxDelay <= 0 {
		c.HeaderRetryMaxDelay = 10 * time.Second
	}
	return c
}

// Driver runs full-sync cycles against one peer set. A new Driver is
// stateless between calls to Sync.
type Driver struct {
	cfg     Config
	log     log.Logger
	headers HeaderFetcher
	bodies  BodyFetcher
	store   ChainStore
	exec    BlockExecutor
}

// New builds a Driver.
func New(cfg Config, logger log.Logger, headers HeaderFetcher, bodies BodyFetcher, store ChainStore, exec BlockExecutor) *Driver {
	return &Driver{cfg: cfg.withDefaults(), log: logger, headers: headers, bodies: bodies, store: store, exec: exec}
}

// Sync runs one full-sync cycle toward syncHead (spec.md §4.G steps 1-4).
func (d *Driver) Sync(ctx context.Context, syncHead common.Hash) error {
	pending, newSyncHead, err := d.resolvePendingAncestors(ctx, syncHead)
	if err != nil {
		return err
	}
	syncHead = newSyncHead

	headers, startNumber, endNumber, err := d.fetchHeaderRange(ctx, syncHead)
	if err != nil {
		return err
	}
	if len(headers) == 0 && len(pending) == 0 {
		return nil
	}

	for start := startNumber; start < endNumber; start += uint64(d.cfg.ExecuteBatchSize) {
		end := start + uint64(d.cfg.ExecuteBatchSize)
		if end > endNumber {
			end = endNumber
		}
		batchHeaders := headersInRange(headers, start, end)
		if len(batchHeaders) == 0 {
			continue
		}
		if err := d.executeHeaderBatch(ctx, batchHeaders, false); err != nil {
			return err
		}
	}

	if len(pending) > 0 {
		if err := d.executeHeaderBatch(ctx, headersOf(pending), true); err != nil {
			return err
		}
	}
	return nil
}

// resolvePendingAncestors walks syncHead's parent chain through locally
// stored pending blocks until a canonical or zero hash is reached (spec.md
// §4.G step 1), returning the pending chain oldest-first and the
// (possibly unchanged) point from which header fetching should resume.
func (d *Driver) resolvePendingAncestors(ctx context.Context, syncHead common.Hash) ([]*types.Block, common.Hash, error) {
	var pending []*types.Block
	for {
		block, ok, err := d.store.PendingBlock(ctx, syncHead)
		if err != nil {
			return nil, common.Hash{}, err
		}
		if !ok {
			break
		}
		canonical, err := d.store.IsCanonical(ctx, block.Hash())
		if err != nil {
			return nil, common.Hash{}, err
		}
		if canonical {
			break
		}
		pending = append([]*types.Block{block}, pending...)
		syncHead = block.Header().ParentHash
	}
	return pending, syncHead, nil
}

// fetchHeaderRange implements spec.md §4.G step 2: request headers
// newest-to-oldest from syncHead in bounded-retry batches, stopping once
// the next parent is canonical or zero, and returns every header collected
// along with the block-number range they span (end exclusive).
func (d *Driver) fetchHeaderRange(ctx context.Context, syncHead common.Hash) ([]*types.Header, uint64, uint64, error) {
	var all []*types.Header // kept ascending by number throughout
	var startNumber, endNumber uint64

	for {
		batch, err := d.requestHeadersWithRetry(ctx, syncHead)
		if err != nil {
			return nil, 0, 0, err
		}
		if len(batch) == 0 {
			return all, startNumber, endNumber, nil
		}

		newest, oldest := batch[0], batch[len(batch)-1] // batch arrives newest-to-oldest
		if endNumber == 0 {
			endNumber = newest.Number.Uint64() + 1
		}
		startNumber = oldest.Number.Uint64()
		reverse(batch) // now oldest-to-newest, matching all's running order

		nextParent := oldest.ParentHash
		canonical, err := d.store.IsCanonical(ctx, nextParent)
		if err != nil {
			return nil, 0, 0, err
		}
		if canonical || isZeroHash(nextParent) {
			firstNonCanon := 0
			for i, h := range batch {
				c, err := d.store.IsCanonical(ctx, h.Hash())
				if err != nil {
					return nil, 0, 0, err
				}
				if !c {
					firstNonCanon = i
					break
				}
				firstNonCanon = i + 1
			}
			batch = batch[firstNonCanon:]
			if len(batch) > 0 {
				startNumber = batch[0].Number.Uint64()
			}
			all = append(batch, all...)
			if startNumber < 1 {
				startNumber = 1
			}
			return all, startNumber, endNumber, nil
		}

		all = append(batch, all...)
		syncHead = nextParent
	}
}

// reverse reverses headers in place.
func reverse(headers []*types.Header) {
	for i, j := 0, len(headers)-1; i < j; i, j = i+1, j-1 {
		headers[i], headers[j] = headers[j], headers[i]
	}
}

// requestHeadersWithRetry requests one header batch, retrying any error or
// empty response with exponential backoff for at most
// MaxHeaderFetchAttempts attempts in all before giving up (spec.md §4.G
// step 2's fixed retry ceiling), mirroring
// sequencer/l1committer.go's submitWithRetry shape but bounded rather than
// indefinite.
func (d *Driver) requestHeadersWithRetry(ctx context.Context, origin common.Hash) ([]*types.Header, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = d.cfg.HeaderRetryBaseDelay
	eb.MaxInterval = d.cfg.HeaderRetryMaxDelay
	eb.MaxElapsedTime = 0

	bounded := backoff.WithMaxRetries(eb, d.cfg.MaxHeaderFetchAttempts-1)

	headers, err := backoff.RetryNotifyWithData(
		func() ([]*types.Header, error) {
			hs, err := d.headers.RequestHeaders(ctx, ethwire.HashOrNumber{Hash: origin}, uint64(d.cfg.ExecuteBatchSize))
			if err == nil && len(hs) == 0 {
				return nil, ErrNoHeaders
			}
			return hs, err
		},
		backoff.WithContext(bounded, ctx),
		func(err error, delay time.Duration) {
			if d.log != nil {
				d.log.Debug("header fetch failed, retrying", "origin", origin, "delay", delay, "err", err)
			}
		},
	)
	if errors.Is(err, ErrNoHeaders) {
		return nil, nil
	}
	return headers, err
}

// executeHeaderBatch fetches bodies for headers (spec.md §4.G step 3, up
// to MaxBlockBodiesPerRequest per request), assembles blocks, executes
// them, and on failure marks the failing block and its descendants with
// the last known valid ancestor; on success it advances forkchoice.
func (d *Driver) executeHeaderBatch(ctx context.Context, headers []*types.Header, sequential bool) error {
	var blocks []*types.Block
	remaining := headers
	for len(remaining) > 0 {
		n := d.cfg.MaxBlockBodiesPerRequest
		if n > len(remaining) {
			n = len(remaining)
		}
		chunk := remaining[:n]
		remaining = remaining[n:]

		hashes := make([]common.Hash, len(chunk))
		for i, h := range chunk {
			hashes[i] = h.Hash()
		}
		bodies, err := d.bodies.RequestBodies(ctx, hashes)
		if err != nil {
			return fmt.Errorf("fullsync: requesting bodies: %w", err)
		}
		if len(bodies) < len(chunk) {
			return fmt.Errorf("%w: requested %d, got %d", ErrMissingBodies, len(chunk), len(bodies))
		}
		for i, h := range chunk {
			blocks = append(blocks, types.NewBlockWithHeader(h).WithBody(bodies[i].Transactions, bodies[i].Uncles))
		}
	}
	if len(blocks) == 0 {
		return nil
	}

	numbersAndHashes := make([]NumberHash, len(blocks))
	for i, b := range blocks {
		numbersAndHashes[i] = NumberHash{Number: b.NumberU64(), Hash: b.Hash()}
	}
	last := numbersAndHashes[len(numbersAndHashes)-1]

	failure, err := d.exec.ExecuteBatch(ctx, blocks, sequential)
	if err != nil {
		return err
	}
	if failure != nil {
		if err := d.markInvalidDescendants(ctx, blocks, *failure); err != nil {
			return err
		}
		return nil
	}

	return d.store.ForkchoiceUpdate(ctx, numbersAndHashes, last.Number, last.Hash)
}

// markInvalidDescendants records failure.LastValidBlockHash as the latest
// valid ancestor for the failing block and every block after it in blocks.
func (d *Driver) markInvalidDescendants(ctx context.Context, blocks []*types.Block, failure BatchFailure) error {
	failing := false
	for _, b := range blocks {
		if b.Hash() == failure.FailedBlockHash {
			failing = true
		}
		if !failing {
			continue
		}
		if err := d.store.SetLatestValidAncestor(ctx, b.Hash(), failure.LastValidBlockHash); err != nil {
			return err
		}
	}
	return nil
}

func headersInRange(headers []*types.Header, start, end uint64) []*types.Header {
	var out []*types.Header
	for _, h := range headers {
		n := h.Number.Uint64()
		if n >= start && n < end {
			out = append(out, h)
		}
	}
	return out
}

func headersOf(blocks []*types.Block) []*types.Header {
	out := make([]*types.Header, len(blocks))
	for i, b := range blocks {
		out[i] = b.Header()
	}
	return out
}

func isZeroHash(h common.Hash) bool { return h == common.Hash{} }
