// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func sampleHeader() *Header {
	return &Header{
		ParentHash: common.Hash{0x01},
		Root:       common.Hash{0x02},
		Number:     big.NewInt(42),
		GasLimit:   30_000_000,
		Time:       1_700_000_000,
	}
}

func TestHeaderHashDeterministic(t *testing.T) {
	a := sampleHeader()
	b := sampleHeader()
	require.Equal(t, a.Hash(), b.Hash())
}

func TestHeaderHashChangesWithField(t *testing.T) {
	a := sampleHeader()
	b := sampleHeader()
	b.GasUsed = 21000
	require.NotEqual(t, a.Hash(), b.Hash())
}

func TestBlockHashMatchesHeaderHash(t *testing.T) {
	h := sampleHeader()
	blk := NewBlockWithHeader(h)
	require.Equal(t, h.Hash(), blk.Hash())
}
