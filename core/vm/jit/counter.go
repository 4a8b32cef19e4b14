// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jit

import (
	"sync"

	"github.com/luxfi/geth/common"
)

type counterKey struct {
	hash common.Hash
	fork string
}

// Counter tracks per-(hash,fork) execution counts so the Dispatcher knows
// when a code object crosses the compilation threshold. Read-mostly, so a
// plain RWMutex-guarded map outperforms a channel-based design here.
type Counter struct {
	mu     sync.RWMutex
	counts map[counterKey]uint64
}

func NewCounter() *Counter {
	return &Counter{counts: make(map[counterKey]uint64)}
}

// Increment bumps the count for (hash, fork) and returns the new total.
func (c *Counter) Increment(hash common.Hash, fork string) uint64 {
	k := counterKey{hash, fork}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[k]++
	return c.counts[k]
}

func (c *Counter) Get(hash common.Hash, fork string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[counterKey{hash, fork}]
}
