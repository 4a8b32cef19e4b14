// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpansionCostMonotone(t *testing.T) {
	var cur uint64
	var total uint64
	for _, step := range []uint64{32, 64, 1024, 32 * 1024} {
		cost := expansionCost(cur+step, cur)
		assert.Greater(t, cost, uint64(0))
		total += cost
		cur += step
	}
	// Expanding to the final size directly must cost the same as the sum of
	// incremental expansions, since cost(new)-cost(current) telescopes.
	assert.Equal(t, total, memoryGasCost(wordCount(cur)))
}

func TestExpansionCostNoShrink(t *testing.T) {
	assert.Equal(t, uint64(0), expansionCost(32, 64))
}

func TestMemorySetGetRoundTrip(t *testing.T) {
	m := newRootMemory()
	m.resize(64)
	m.Set(0, []byte("hello world"))
	assert.Equal(t, []byte("hello world"), m.GetCopy(0, 11))
}

func TestMemoryChildViewIsolated(t *testing.T) {
	parent := newRootMemory()
	parent.resize(32)
	parent.Set(0, []byte{0xAA})

	child := parent.child()
	child.resize(32)
	child.Set(0, []byte{0xBB})

	assert.Equal(t, byte(0xAA), parent.GetCopy(0, 1)[0])
	assert.Equal(t, byte(0xBB), child.GetCopy(0, 1)[0])

	child.release()
	assert.Equal(t, byte(0), child.GetCopy(0, 1)[0])
	assert.Equal(t, byte(0xAA), parent.GetCopy(0, 1)[0], "releasing a child frame must not touch the parent's segment")
}
