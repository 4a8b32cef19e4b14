// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sequencer is spec.md §4.F: the block producer that drains the
// mempool into L2 blocks, the L1 committer that seals those blocks into
// batches and anchors them to L1, and the recovery path that reconciles
// in-memory state with the rollup store after a restart. It is grounded on
// the teacher's plugin/evm/block_builder.go idle-until-signaled shape,
// re-expressed with core/txpool.Mempool.AwaitTxAdded standing in for that
// file's sync.Cond, and on errgroup's cancellation-propagation idiom for
// coordinating the producer and committer goroutines.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	gtypes "github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/rollup/core/txpool"
	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/core/vm"
	"github.com/luxfi/rollup/rollupstore"
)

// StateRootProvider bridges the gap between core/vm.StateHost (which has no
// trie or persistent-storage notion, per spec.md §1's framing of those as
// external collaborators) and whatever backs the canonical L2 state. The
// sequencer asks it for the state a new block should build on top of, and
// hands it the resulting host back once a block is sealed so the next block
// (or a restart) can resume from it.
type StateRootProvider interface {
	// StateForBlock returns a state host seeded with the account state as
	// of block.BlockNumber-1, constructed with block as its BlockContext so
	// COINBASE/NUMBER/TIMESTAMP/BASEFEE read correctly for the block about
	// to execute.
	StateForBlock(ctx context.Context, block vm.BlockContext) (*vm.StateHost, error)
	// Commit persists host's resulting account state as canonical as of
	// block.BlockNumber and returns the new state root.
	Commit(ctx context.Context, block vm.BlockContext, host *vm.StateHost) (stateRoot common.Hash, err error)
}

// L1Submitter posts a batch commitment to L1. Concrete L1 client wiring
// (RPC endpoint, signing key, gas estimation) is out of this module's scope
// per spec.md §1; callers inject an implementation.
type L1Submitter interface {
	SubmitCommitment(ctx context.Context, batch *types.BatchRecord, input *types.ProverInputData) (common.Hash, error)
}

// Config holds the fixed parameters a Sequencer needs across restarts.
type Config struct {
	Coinbase     common.Address
	GasLimit     uint64
	ChainID      *uint256.Int
	Fork         string
	MinTip       *uint256.Int
	BlockPeriod  time.Duration // upper bound on idle time between AwaitTxAdded retries
	BlocksPerBatch uint64

	CommitRetryBaseDelay time.Duration
	CommitRetryMaxDelay  time.Duration
}

// ErrAborted is returned by Run when the sequencer was stopped via Shutdown
// rather than a context cancellation from outside.
var ErrAborted = errors.New("sequencer: aborted")

// Sequencer owns the block producer and L1 committer goroutines and their
// shared cancellation.
type Sequencer struct {
	cfg   Config
	log   log.Logger
	store *rollupstore.Store

	Mempool  *txpool.Mempool
	State    StateRootProvider
	Signer   gtypes.Signer
	Submitter L1Submitter

	producer  *BlockProducer
	committer *L1Committer

	cancel   context.CancelFunc
	aborted  atomic.Bool
}

// New wires a Sequencer from its collaborators. Call Run to start it.
func New(cfg Config, logger log.Logger, store *rollupstore.Store, mempool *txpool.Mempool, state StateRootProvider, signer gtypes.Signer, submitter L1Submitter) *Sequencer {
	s := &Sequencer{cfg: cfg, log: logger, store: store, Mempool: mempool, State: state, Signer: signer, Submitter: submitter}
	s.producer = &BlockProducer{cfg: cfg, log: logger, mempool: mempool, state: state, signer: signer, store: store}
	s.committer = &L1Committer{cfg: cfg, log: logger, store: store, submitter: submitter}
	return s
}

// Run blocks until ctx is cancelled or Shutdown is called, running the
// block producer and L1 committer concurrently; either goroutine's error
// stops both (errgroup's propagation), mirroring the teacher's
// shutdownChan/shutdownWg pair but with a proper error channel.
func (s *Sequencer) Run(ctx context.Context) error {
	s.aborted.Store(false)
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	sealed := make(chan sealedBlock, 1)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.producer.run(ctx, sealed) })
	g.Go(func() error { return s.committer.run(ctx, sealed) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if s.aborted.Load() {
		return ErrAborted
	}
	return nil
}

// Shutdown stops the producer and committer and causes Run to return
// ErrAborted once they unwind, distinguishing a deliberate stop from an
// external context cancellation. It is safe to call once Run has started;
// calling it before Run has no effect.
func (s *Sequencer) Shutdown() {
	s.aborted.Store(true)
	if s.cancel != nil {
		s.cancel()
	}
}

// RegenerateState restores in-memory state after a restart, per spec.md
// §4.F's RegenerateState contract.
func (s *Sequencer) RegenerateState(ctx context.Context) error {
	next, err := regenerateState(ctx, s.store, s.State)
	if err != nil {
		return err
	}
	s.producer.SetNextBlock(next)
	return nil
}

func fmtBlockRange(first, last uint64) string {
	if first == last {
		return fmt.Sprintf("block %d", first)
	}
	return fmt.Sprintf("blocks %d-%d", first, last)
}
