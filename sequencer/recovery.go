// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sequencer

import (
	"context"

	"github.com/luxfi/rollup/rollupstore"
)

// regenerateState implements spec.md §4.F's RegenerateState: on startup,
// read the latest sealed batch from the rollup store and resume block
// production from the block immediately after it. It is idempotent — a
// second call against an unchanged store observes the same latest batch
// and is a no-op beyond re-deriving the same next-block number — and
// crash-tolerant, since it reads only what the store already durably
// recorded rather than any in-memory state of a previous run.
func regenerateState(ctx context.Context, store *rollupstore.Store, state StateRootProvider) (uint64, error) {
	if err := store.Init(ctx); err != nil {
		return 0, err
	}

	latest, ok, err := store.Engine().LatestBatchNumber(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	batch, err := store.Engine().GetBatch(ctx, latest, "")
	if err != nil {
		return 0, err
	}
	if batch == nil {
		// The latest batch number was reported but the record itself is
		// gone (a revert raced with this read); fall back to genesis.
		return 0, nil
	}
	return batch.LastBlock + 1, nil
}
