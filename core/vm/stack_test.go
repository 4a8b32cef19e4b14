// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackPushPopOrder(t *testing.T) {
	s := newStack()
	require.NoError(t, s.push(uint256.NewInt(1)))
	require.NoError(t, s.push(uint256.NewInt(2)))
	require.NoError(t, s.push(uint256.NewInt(3)))

	ops, err := s.popN(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), ops[0].Uint64(), "pop1 is the former top of stack")
	assert.Equal(t, uint64(2), ops[1].Uint64())
	assert.Equal(t, 1, s.len())
}

func TestStackOverflow(t *testing.T) {
	s := newStack()
	for i := 0; i < maxStackDepth; i++ {
		require.NoError(t, s.push(uint256.NewInt(uint64(i))))
	}
	assert.ErrorIs(t, s.push(uint256.NewInt(1)), ErrStackOverflow)
}

func TestStackUnderflow(t *testing.T) {
	s := newStack()
	_, err := s.pop()
	assert.ErrorIs(t, err, ErrStackUnderflow)

	require.NoError(t, s.push(uint256.NewInt(1)))
	_, err = s.popN(2)
	assert.ErrorIs(t, err, ErrStackUnderflow)
}

func TestStackDup(t *testing.T) {
	s := newStack()
	require.NoError(t, s.push(uint256.NewInt(10)))
	require.NoError(t, s.push(uint256.NewInt(20)))

	require.NoError(t, s.dup(2))
	top, err := s.peek(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), top.Uint64(), "DUP2 duplicates the second item from top")
	assert.Equal(t, 3, s.len())
}

func TestStackSwap(t *testing.T) {
	s := newStack()
	require.NoError(t, s.push(uint256.NewInt(10)))
	require.NoError(t, s.push(uint256.NewInt(20)))

	require.NoError(t, s.swap(1))
	top, err := s.peek(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), top.Uint64(), "SWAP1 exchanges top with the second item")
	bottom, err := s.peek(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), bottom.Uint64())
}
