// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rollupstore

import "errors"

// ErrNotInitialized is returned by operations that require init() to have
// sealed batch 0 first.
var ErrNotInitialized = errors.New("rollupstore: not initialized")

// ErrBatchNotContiguous is returned by SealBatch/SealBatchWithProverInput
// when the candidate batch does not immediately follow the latest sealed
// batch (see types.BatchRecord.ContiguousWith).
var ErrBatchNotContiguous = errors.New("rollupstore: batch not contiguous with latest sealed batch")
