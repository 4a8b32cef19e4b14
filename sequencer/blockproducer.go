// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sequencer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	gtypes "github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"

	"github.com/luxfi/rollup/core/blockexec"
	"github.com/luxfi/rollup/core/txpool"
	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/core/vm"
	"github.com/luxfi/rollup/core/vm/jit"
	"github.com/luxfi/rollup/rollupstore"
)

// sealedBlock is one executed L2 block handed from the producer to the
// committer over a channel with a one-block buffer (see Sequencer.Run).
type sealedBlock struct {
	Block        vm.BlockContext
	Txs          []*types.Transaction
	Receipts     []*types.Receipt
	BAL          blockexec.BAL
	StateRoot    common.Hash
	BalanceDiffs []types.BalanceDiff
}

// BlockProducer pulls filtered transactions from the mempool and executes
// them into L2 blocks, per spec.md §4.F. It idles on Mempool.AwaitTxAdded
// between attempts instead of polling, the same idle-until-signaled shape
// as the teacher's blockBuilder waiting on its pendingSignal condition
// variable.
type BlockProducer struct {
	cfg     Config
	log     log.Logger
	mempool *txpool.Mempool
	state   StateRootProvider
	signer  gtypes.Signer
	store   *rollupstore.Store

	dispatcher *jit.Dispatcher // optional; nil runs the interpreter only

	mu        sync.Mutex
	nextBlock uint64
	baseFee   *uint256.Int
}

// SetNextBlock sets the block number the producer resumes from; used by
// RegenerateState on startup.
func (p *BlockProducer) SetNextBlock(n uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextBlock = n
}

// SetBaseFee sets the base fee new blocks are built against. Base fee
// recalculation per block (EIP-1559 style) is left to the caller; this
// module treats it as an externally-supplied parameter, consistent with
// spec.md §4.E treating FeeConfig as externally-configured policy.
func (p *BlockProducer) SetBaseFee(fee *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baseFee = fee
}

// awaitWork idles until the mempool reports a new arrival, or, if
// cfg.BlockPeriod is set, until that much time has passed without one — a
// periodic wakeup so a change to the fee config or base fee (which does
// not itself arrive through the mempool) still gets picked up promptly.
func (p *BlockProducer) awaitWork(ctx context.Context) error {
	if p.cfg.BlockPeriod <= 0 {
		return p.mempool.AwaitTxAdded(ctx)
	}
	tickCtx, cancel := context.WithTimeout(ctx, p.cfg.BlockPeriod)
	defer cancel()
	err := p.mempool.AwaitTxAdded(tickCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (p *BlockProducer) run(ctx context.Context, out chan<- sealedBlock) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sealed, built, err := p.buildBlock(ctx)
		if err != nil {
			return err
		}
		if !built {
			if err := p.awaitWork(ctx); err != nil {
				return err
			}
			continue
		}

		select {
		case out <- sealed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// buildBlock filters the mempool, executes the resulting transactions
// against the current state, and removes the included transactions. It
// returns built=false (without touching state) if the mempool currently
// offers nothing the filter accepts, so the caller can idle instead of
// sealing an empty block.
func (p *BlockProducer) buildBlock(ctx context.Context) (sealedBlock, bool, error) {
	p.mu.Lock()
	blockNumber := p.nextBlock
	baseFee := p.baseFee
	p.mu.Unlock()

	filter := txpool.Filter{MinTip: p.cfg.MinTip, BaseFee: baseFee}
	bySender := p.mempool.FilterTransactions(filter)
	if len(bySender) == 0 {
		return sealedBlock{}, false, nil
	}
	txs := flattenBySenderArrival(bySender)

	block := vm.BlockContext{
		Coinbase:    p.cfg.Coinbase,
		GasLimit:    p.cfg.GasLimit,
		BlockNumber: blockNumber,
		Time:        uint64(time.Now().Unix()),
		BaseFee:     baseFee,
		ChainID:     p.cfg.ChainID,
		Fork:        p.cfg.Fork,
	}

	host, err := p.state.StateForBlock(ctx, block)
	if err != nil {
		return sealedBlock{}, false, err
	}
	preBalances := host.Balances()

	feeConfig, err := p.feeConfigForBlock(ctx, blockNumber)
	if err != nil {
		return sealedBlock{}, false, err
	}
	executor := blockexec.NewExecutor(p.signer, p.cfg.Fork, p.dispatcher, feeConfig)

	receipts, err := executor.ExecuteBlock(host, block, txs)
	if err != nil {
		return sealedBlock{}, false, err
	}

	stateRoot, err := p.state.Commit(ctx, block, host)
	if err != nil {
		return sealedBlock{}, false, err
	}

	bal := blockexec.BuildBAL(host)
	diffs := balanceDiffsFromBAL(bal, preBalances)

	for _, tx := range txs {
		p.mempool.RemoveTransaction(tx.Hash())
	}

	p.mu.Lock()
	p.nextBlock = blockNumber + 1
	p.mu.Unlock()

	if p.log != nil {
		p.log.Debug("sequencer produced block", "number", blockNumber, "txs", len(txs))
	}

	return sealedBlock{
		Block:        block,
		Txs:          txs,
		Receipts:     receipts,
		BAL:          bal,
		StateRoot:    stateRoot,
		BalanceDiffs: diffs,
	}, true, nil
}

func (p *BlockProducer) feeConfigForBlock(ctx context.Context, blockNumber uint64) (types.FeeConfig, error) {
	fc, err := p.store.Engine().GetFeeConfig(ctx, blockNumber)
	if err != nil {
		return types.FeeConfig{}, err
	}
	if fc == nil {
		return types.FeeConfig{}, nil
	}
	return *fc, nil
}

// flattenBySenderArrival interleaves each sender's nonce-ordered queue by
// earliest arrival time, giving a fairness-minded ordering without
// reimplementing a full priority-fee auction (out of scope per spec.md §1,
// which frames block-building policy as pluggable). Queue heads with equal
// arrival times are taken in map iteration order, which is not fixed.
func flattenBySenderArrival(bySender map[common.Address][]*types.MempoolTransaction) []*types.Transaction {
	type cursor struct {
		txs []*types.MempoolTransaction
		pos int
	}
	cursors := make([]*cursor, 0, len(bySender))
	for _, txs := range bySender {
		cursors = append(cursors, &cursor{txs: txs})
	}

	var out []*types.Transaction
	for {
		best := -1
		for i, c := range cursors {
			if c.pos >= len(c.txs) {
				continue
			}
			if best == -1 || c.txs[c.pos].Arrival.Before(cursors[best].txs[cursors[best].pos].Arrival) {
				best = i
			}
		}
		if best == -1 {
			break
		}
		out = append(out, cursors[best].txs[cursors[best].pos].Tx)
		cursors[best].pos++
	}
	return out
}

// balanceDiffsFromBAL turns the block's balance-change accumulator into
// signed types.BalanceDiff records by comparing each changed account's new
// balance against its balance before the block started.
func balanceDiffsFromBAL(bal blockexec.BAL, pre map[common.Address]uint256.Int) []types.BalanceDiff {
	diffs := make([]types.BalanceDiff, 0, len(bal.Accounts))
	for _, acc := range bal.Accounts {
		if !acc.BalanceChanged {
			continue
		}
		before := pre[acc.Address] // zero value if the account is new this block
		if acc.NewBalance.Cmp(&before) >= 0 {
			diffs = append(diffs, types.BalanceDiff{
				Address: acc.Address,
				Delta:   new(uint256.Int).Sub(acc.NewBalance, &before),
			})
		} else {
			diffs = append(diffs, types.BalanceDiff{
				Address:  acc.Address,
				Delta:    new(uint256.Int).Sub(&before, acc.NewBalance),
				Negative: true,
			})
		}
	}
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Address.Hex() < diffs[j].Address.Hex() })
	return diffs
}
