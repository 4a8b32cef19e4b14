// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jit

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/luxfi/geth/common"
)

// CompiledCode is the JIT cache value: an opaque executable handle plus the
// bookkeeping the Dispatcher and differential validator need. FnID is
// backend-specific and opaque to this package.
type CompiledCode struct {
	FnID             interface{}
	BytecodeSize     int
	BasicBlockCount  int
	HasExternalCalls bool
	Oversized        bool
}

type cacheKey struct {
	hash common.Hash
	fork string
}

// CodeCache is a FIFO-evicted cache of compiled code keyed by (hash, fork),
// built on hashicorp/golang-lru the way the rest of this codebase reuses it
// for other hot-path caches (see DESIGN.md) -- insertion-order eviction
// falls out naturally as long as entries are never re-Added after a Get.
type CodeCache struct {
	mu   sync.Mutex
	lru  *lru.Cache
	negative map[cacheKey]struct{} // oversized bytecode, never retried
}

func NewCodeCache(maxEntries int) *CodeCache {
	c, err := lru.New(maxEntries)
	if err != nil {
		// Only returns an error for size <= 0, which is a programmer error.
		panic(err)
	}
	return &CodeCache{lru: c, negative: make(map[cacheKey]struct{})}
}

func (c *CodeCache) Get(hash common.Hash, fork string) (CompiledCode, bool) {
	v, ok := c.lru.Peek(cacheKey{hash, fork})
	if !ok {
		return CompiledCode{}, false
	}
	return v.(CompiledCode), true
}

func (c *CodeCache) Put(hash common.Hash, fork string, code CompiledCode) {
	c.lru.Add(cacheKey{hash, fork}, code)
}

func (c *CodeCache) Invalidate(hash common.Hash, fork string) {
	c.lru.Remove(cacheKey{hash, fork})
}

// MarkOversized records that (hash, fork) must never be compiled again,
// per spec.md §7 "a repeated failure marks the bytecode oversized to
// suppress future attempts".
func (c *CodeCache) MarkOversized(hash common.Hash, fork string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.negative[cacheKey{hash, fork}] = struct{}{}
}

func (c *CodeCache) IsOversized(hash common.Hash, fork string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.negative[cacheKey{hash, fork}]
	return ok
}
