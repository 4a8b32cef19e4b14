// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ethwire

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/rlp"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/rollup/core/types"
)

func TestGetBlockHeadersPacketEncodeDecodeByNumber(t *testing.T) {
	packet := &GetBlockHeadersPacket{Origin: HashOrNumber{Number: 314}, Amount: 192, Skip: 1, Reverse: true}
	enc, err := rlp.EncodeToBytes(packet)
	require.NoError(t, err)

	got := new(GetBlockHeadersPacket)
	require.NoError(t, rlp.DecodeBytes(enc, got))
	require.Equal(t, packet.Origin.Number, got.Origin.Number)
	require.Equal(t, common.Hash{}, got.Origin.Hash)
	require.Equal(t, packet.Amount, got.Amount)
	require.Equal(t, packet.Skip, got.Skip)
	require.Equal(t, packet.Reverse, got.Reverse)
}

func TestGetBlockHeadersPacketEncodeDecodeByHash(t *testing.T) {
	var hash common.Hash
	for i := range hash {
		hash[i] = byte(i)
	}
	packet := &GetBlockHeadersPacket{Origin: HashOrNumber{Hash: hash}, Amount: 1}
	enc, err := rlp.EncodeToBytes(packet)
	require.NoError(t, err)

	got := new(GetBlockHeadersPacket)
	require.NoError(t, rlp.DecodeBytes(enc, got))
	require.Equal(t, hash, got.Origin.Hash)
	require.Equal(t, uint64(0), got.Origin.Number)
}

func TestGetBlockHeadersPacket66RoundTrip(t *testing.T) {
	req := &GetBlockHeadersPacket66{
		RequestId:             123,
		GetBlockHeadersPacket: GetBlockHeadersPacket{Origin: HashOrNumber{Number: 7}, Amount: 5},
	}
	enc, err := rlp.EncodeToBytes(req)
	require.NoError(t, err)

	got := new(GetBlockHeadersPacket66)
	require.NoError(t, rlp.DecodeBytes(enc, got))
	require.Equal(t, req.RequestId, got.RequestId)
	require.Equal(t, req.Amount, got.Amount)
}

func TestNewPooledTransactionHashesAnnouncementsRejectsUnequalLengths(t *testing.T) {
	p := &NewPooledTransactionHashesPacket{
		Types:  []byte{0, 1},
		Sizes:  []uint32{100, 200},
		Hashes: []common.Hash{{0x01}},
	}
	_, err := p.Announcements()
	require.ErrorIs(t, err, ErrDecode)
}

func TestNewPooledTransactionHashesAnnouncements(t *testing.T) {
	p := &NewPooledTransactionHashesPacket{
		Types:  []byte{0, 2},
		Sizes:  []uint32{100, 200},
		Hashes: []common.Hash{{0x01}, {0x02}},
	}
	got, err := p.Announcements()
	require.NoError(t, err)
	require.Equal(t, []Announcement{
		{Type: 0, Size: 100, Hash: common.Hash{0x01}},
		{Type: 2, Size: 200, Hash: common.Hash{0x02}},
	}, got)
}

func TestValidateBlobBundleForForkRequiresWrapperVersionAfterPrague(t *testing.T) {
	bundle := &types.BlobsBundle{Blobs: [][]byte{{1}}, Commitments: [][]byte{{2}}, Proofs: [][]byte{{3}}}
	require.Error(t, ValidateBlobBundleForFork(bundle, "osaka"))
	require.NoError(t, ValidateBlobBundleForFork(bundle, "prague")) // at/before Prague: no wrapper version

	v := byte(1)
	bundle.Version = &v
	require.NoError(t, ValidateBlobBundleForFork(bundle, "osaka"))
	require.Error(t, ValidateBlobBundleForFork(bundle, "prague")) // now carries one when it shouldn't
}

func TestValidateBlobBundleForForkRejectsMismatchedLengths(t *testing.T) {
	bundle := &types.BlobsBundle{Blobs: [][]byte{{1}, {2}}, Commitments: [][]byte{{3}}, Proofs: [][]byte{{4}}}
	require.ErrorIs(t, ValidateBlobBundleForFork(bundle, "cancun"), ErrBlobBundleShape)
}
