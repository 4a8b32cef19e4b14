// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sequencer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/rollupstore"
)

// L1Committer accumulates sealed blocks from the BlockProducer into batches
// of cfg.BlocksPerBatch blocks, seals each batch (with its prover input)
// atomically in the rollup store, and posts the commitment to L1, retrying
// failed submissions with capped exponential backoff (spec.md §4.F).
type L1Committer struct {
	cfg       Config
	log       log.Logger
	store     *rollupstore.Store
	submitter L1Submitter

	working []sealedBlock
}

func (c *L1Committer) run(ctx context.Context, in <-chan sealedBlock) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case blk, ok := <-in:
			if !ok {
				return nil
			}
			c.working = append(c.working, blk)
			if uint64(len(c.working)) < c.cfg.BlocksPerBatch {
				continue
			}
			if err := c.sealAndCommit(ctx); err != nil {
				return err
			}
		}
	}
}

// sealAndCommit builds a BatchRecord + ProverInputData from the working
// block set, seals both atomically, and posts the commitment to L1.
func (c *L1Committer) sealAndCommit(ctx context.Context) error {
	batch, input, err := c.assembleBatch(ctx)
	if err != nil {
		return err
	}

	if err := c.store.Engine().SealBatchWithProverInput(ctx, batch, input); err != nil {
		return err
	}
	if c.log != nil {
		c.log.Debug("sealed batch", "number", batch.Number, "blocks", fmtBlockRange(batch.FirstBlock, batch.LastBlock))
	}

	txHash, err := c.submitWithRetry(ctx, batch, input)
	if err != nil {
		return err
	}
	if err := c.store.Engine().SetCommitTx(ctx, batch.Number, txHash); err != nil {
		return err
	}

	c.working = nil
	return nil
}

func (c *L1Committer) assembleBatch(ctx context.Context) (*types.BatchRecord, *types.ProverInputData, error) {
	first := c.working[0].Block.BlockNumber
	last := c.working[len(c.working)-1].Block.BlockNumber

	latest, ok, err := c.store.Engine().LatestBatchNumber(ctx)
	if err != nil {
		return nil, nil, err
	}
	number := uint64(1)
	if ok {
		number = latest + 1
	}

	var balanceDiffs []types.BalanceDiff
	var nonPrivileged uint64
	var feeConfigs []types.FeeConfig
	blocks := make([][]byte, 0, len(c.working))
	for _, blk := range c.working {
		balanceDiffs = append(balanceDiffs, blk.BalanceDiffs...)
		for _, tx := range blk.Txs {
			if !tx.Privileged {
				nonPrivileged++
			}
		}
		fc, err := c.store.Engine().GetFeeConfig(ctx, blk.Block.BlockNumber)
		if err != nil {
			return nil, nil, err
		}
		if fc != nil {
			feeConfigs = append(feeConfigs, *fc)
		}
		blocks = append(blocks, encodeBlockForProver(blk))
	}

	batch := &types.BatchRecord{
		Number:                         number,
		FirstBlock:                     first,
		LastBlock:                      last,
		StateRoot:                      c.working[len(c.working)-1].StateRoot,
		NonPrivilegedTransactionsCount: nonPrivileged,
		BalanceDiffs:                   balanceDiffs,
	}
	input := &types.ProverInputData{
		BatchNumber:   number,
		ProverVersion: "v1",
		Blocks:        blocks,
		FeeConfigs:    feeConfigs,
	}
	return batch, input, nil
}

// encodeBlockForProver serializes a sealed block's transactions into their
// canonical encoding; the prover's witness format beyond that is out of
// scope per spec.md §1 (ProverInputData.WitnessTries is populated by the
// prover-input-builder wiring, not produced here).
func encodeBlockForProver(blk sealedBlock) []byte {
	var buf []byte
	for _, tx := range blk.Txs {
		encoded, err := tx.MarshalBinary()
		if err != nil {
			continue
		}
		buf = append(buf, encoded...)
	}
	return buf
}

// submitWithRetry posts the commitment to L1, retrying with exponential
// backoff whose delay is capped at cfg.CommitRetryMaxDelay (spec.md §4.F).
// Every error SubmitCommitment returns is retried; errors are not
// classified as transient or permanent. There is no elapsed-time ceiling:
// retries continue until a submission succeeds or ctx is cancelled.
func (c *L1Committer) submitWithRetry(ctx context.Context, batch *types.BatchRecord, input *types.ProverInputData) (common.Hash, error) {
	baseDelay := c.cfg.CommitRetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.CommitRetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = baseDelay
	eb.MaxInterval = maxDelay
	eb.MaxElapsedTime = 0 // retry indefinitely; only ctx cancellation stops it

	return backoff.RetryNotifyWithData(
		func() (common.Hash, error) { return c.submitter.SubmitCommitment(ctx, batch, input) },
		backoff.WithContext(eb, ctx),
		func(err error, delay time.Duration) {
			if c.log != nil {
				c.log.Debug("commitment submission failed, retrying", "batch", batch.Number, "delay", delay, "err", err)
			}
		},
	)
}
