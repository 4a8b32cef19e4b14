// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ethwire defines the RLPx eth-subprotocol messages spec.md §4.G
// and §6 name: the header/body request pair full sync drives, and the
// transaction-gossip quartet (Transactions, NewPooledTransactionHashes,
// GetPooledTransactions, PooledTransactions) the broadcaster and tx fetcher
// speak. Message shapes and request-id wrapping follow go-ethereum's eth
// protocol exactly, since this rollup's P2P wire format is the standard
// Ethereum one.
package ethwire

import (
	"errors"
	"fmt"
	"io"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/rlp"

	"github.com/luxfi/rollup/core/types"
)

// Message codes, per spec.md §6.
const (
	TransactionsMsg               = 0x02
	GetBlockHeadersMsg            = 0x03
	BlockHeadersMsg               = 0x04
	GetBlockBodiesMsg             = 0x05
	BlockBodiesMsg                = 0x06
	NewPooledTransactionHashesMsg = 0x08
	GetPooledTransactionsMsg      = 0x09
	PooledTransactionsMsg         = 0x0A
)

// ErrDecode is returned for any wire message that fails its shape
// invariants (mismatched parallel-array lengths, conflicting union fields).
var ErrDecode = errors.New("ethwire: invalid message")

// HashOrNumber is either a block hash or a block number, the union
// GetBlockHeadersPacket's Origin field encodes as a single RLP value:
// a 32-byte string for a hash, or a minimal big-endian integer for a
// number, matching go-ethereum's eth/63 header-query encoding.
type HashOrNumber struct {
	Hash   common.Hash
	Number uint64
}

// EncodeRLP writes either Hash or Number, whichever is set; Hash takes
// precedence when both are (the caller should only ever set one).
func (hn HashOrNumber) EncodeRLP(w io.Writer) error {
	if hn.Hash != (common.Hash{}) {
		return rlp.Encode(w, hn.Hash)
	}
	return rlp.Encode(w, hn.Number)
}

// DecodeRLP decodes a 32-byte string as a hash and a string of at most 8
// bytes as a number; anything else is rejected with ErrDecode.
func (hn *HashOrNumber) DecodeRLP(s *rlp.Stream) error {
	kind, size, err := s.Kind()
	if err != nil {
		return err
	}
	switch {
	case kind == rlp.String && size == 32:
		hn.Number = 0
		return s.Decode(&hn.Hash)
	case kind == rlp.String && size <= 8:
		hn.Hash = common.Hash{}
		return s.Decode(&hn.Number)
	default:
		return fmt.Errorf("%w: invalid HashOrNumber, want hash or uint64", ErrDecode)
	}
}

// GetBlockHeadersPacket requests a run of headers starting at Origin:
// Amount headers, skipping Skip between each, in Reverse (newest-to-oldest)
// or forward order. Full sync's HeaderFetcher (sync/fullsync) asks for
// headers newest-to-oldest, the order Reverse=true selects (spec.md §4.G
// step 2); this package does not build those requests itself.
type GetBlockHeadersPacket struct {
	Origin  HashOrNumber
	Amount  uint64
	Skip    uint64
	Reverse bool
}

// GetBlockHeadersPacket66 is GetBlockHeadersPacket wrapped with a
// request id whose response mirrors it back, the eth/66+ convention.
type GetBlockHeadersPacket66 struct {
	RequestId uint64
	GetBlockHeadersPacket
}

// BlockHeadersPacket is a list of headers, newest-to-oldest when answering
// a Reverse request.
type BlockHeadersPacket []*types.Header

// BlockHeadersPacket66 mirrors the request id of the GetBlockHeadersPacket66
// it answers.
type BlockHeadersPacket66 struct {
	RequestId uint64
	BlockHeadersPacket
}

// GetBlockBodiesPacket requests the bodies for a list of block hashes,
// at most MAX_BLOCK_BODIES_TO_REQUEST per request (spec.md §4.G step 3).
type GetBlockBodiesPacket []common.Hash

// GetBlockBodiesPacket66 wraps GetBlockBodiesPacket with a request id.
type GetBlockBodiesPacket66 struct {
	RequestId uint64
	GetBlockBodiesPacket
}

// BlockBody is a block's non-header content: its transaction list and any
// uncle headers. This rollup never mines uncles, so Uncles is always empty,
// but the field is kept for wire compatibility with standard eth clients.
type BlockBody struct {
	Transactions []*types.Transaction
	Uncles       []*types.Header
}

// BlockBodiesPacket is a list of bodies answering a GetBlockBodiesPacket,
// in the same order as the requested hashes (missing ones simply absent).
type BlockBodiesPacket []*BlockBody

// BlockBodiesPacket66 mirrors the request id of the GetBlockBodiesPacket66
// it answers.
type BlockBodiesPacket66 struct {
	RequestId uint64
	BlockBodiesPacket
}

// TransactionsPacket is an unsolicited push of full transaction bodies —
// the broadcaster's full-body send to the ceil(sqrt(|peers|)) peers chosen
// to receive them (spec.md §4.G).
type TransactionsPacket []*types.Transaction

// NewPooledTransactionHashesPacket announces transactions a peer can
// request by hash: Types, Sizes and Hashes are parallel arrays, one entry
// per announced transaction (eth/68 format; spec.md §6 requires the three
// arrays be equal length).
type NewPooledTransactionHashesPacket struct {
	Types  []byte
	Sizes  []uint32
	Hashes []common.Hash
}

// Announcement is one (type, size, hash) triple unpacked from a
// NewPooledTransactionHashesPacket.
type Announcement struct {
	Type uint8
	Size uint32
	Hash common.Hash
}

// Announcements validates the packet's parallel arrays are equal length and
// unpacks them into a slice of Announcement, spec.md §6's "lengths must be
// equal and equal to 0..N".
func (p *NewPooledTransactionHashesPacket) Announcements() ([]Announcement, error) {
	n := len(p.Hashes)
	if len(p.Types) != n || len(p.Sizes) != n {
		return nil, fmt.Errorf("%w: NewPooledTransactionHashes arrays of unequal length (types=%d sizes=%d hashes=%d)",
			ErrDecode, len(p.Types), len(p.Sizes), n)
	}
	out := make([]Announcement, n)
	for i := range out {
		out[i] = Announcement{Type: p.Types[i], Size: p.Sizes[i], Hash: p.Hashes[i]}
	}
	return out, nil
}

// GetPooledTransactionsRequest is the hash list inside a
// GetPooledTransactionsPacket.
type GetPooledTransactionsRequest []common.Hash

// GetPooledTransactionsPacket requests full transaction bodies by hash.
type GetPooledTransactionsPacket struct {
	RequestId uint64
	GetPooledTransactionsRequest
}

// PooledTransaction is one wire-level transaction in a PooledTransactions
// response: the transaction itself, plus its blob bundle when it is an
// EIP-4844 transaction — the "wrapped" network form spec.md §6 describes.
// Blobs is the struct's only optional trailing field, so a plain
// (non-blob) transaction's encoding carries no extra list element.
type PooledTransaction struct {
	Tx    *types.Transaction
	Blobs *types.BlobsBundle `rlp:"optional"`
}

// PooledTransactionsResponse is the tx list inside a PooledTransactionsPacket.
type PooledTransactionsResponse []*PooledTransaction

// PooledTransactionsPacket answers a GetPooledTransactionsPacket, mirroring
// its request id.
type PooledTransactionsPacket struct {
	RequestId uint64
	PooledTransactionsResponse
}

// ErrUnexpectedTransaction is returned when a PooledTransactions response
// contains a transaction that was never announced via
// NewPooledTransactionHashes.
var ErrUnexpectedTransaction = errors.New("ethwire: unannounced or mismatched pooled transaction")

// ValidateRequested implements PooledTransactions::validate_requested
// (spec.md §4.G): every returned transaction's hash, type and size must
// match one of the announcements it was requested against.
func ValidateRequested(announced []Announcement, got []*types.Transaction) error {
	byHash := make(map[common.Hash]Announcement, len(announced))
	for _, a := range announced {
		byHash[a.Hash] = a
	}
	for _, tx := range got {
		ann, ok := byHash[tx.Hash()]
		if !ok {
			return fmt.Errorf("%w: hash %s was not announced", ErrUnexpectedTransaction, tx.Hash())
		}
		if uint8(tx.Type()) != ann.Type {
			return fmt.Errorf("%w: type mismatch for %s: announced %d, got %d", ErrUnexpectedTransaction, tx.Hash(), ann.Type, tx.Type())
		}
		if size := uint32(tx.Size()); size != ann.Size {
			return fmt.Errorf("%w: size mismatch for %s: announced %d, got %d", ErrUnexpectedTransaction, tx.Hash(), ann.Size, size)
		}
	}
	return nil
}

// ErrBlobBundleShape is returned when a blob bundle's parallel arrays
// (blobs, commitments, proofs) don't match in length, or its wrapper
// version doesn't match what the fork requires.
var ErrBlobBundleShape = errors.New("ethwire: malformed blob bundle")

// ValidateBlobBundleForFork is the "cheap validation against the fork"
// spec.md §4.G calls for: array-length agreement, and the wrapper-version
// byte matching WrapperVersionForFork (dropped entirely at or before
// Prague, present after Prague).
func ValidateBlobBundleForFork(bundle *types.BlobsBundle, fork string) error {
	if len(bundle.Blobs) != len(bundle.Commitments) || len(bundle.Blobs) != len(bundle.Proofs) {
		return fmt.Errorf("%w: blobs=%d commitments=%d proofs=%d", ErrBlobBundleShape, len(bundle.Blobs), len(bundle.Commitments), len(bundle.Proofs))
	}
	want := types.WrapperVersionForFork(fork)
	switch {
	case want == nil && bundle.Version != nil:
		return fmt.Errorf("%w: fork %s must not carry a wrapper version", ErrBlobBundleShape, fork)
	case want != nil && bundle.Version == nil:
		return fmt.Errorf("%w: fork %s requires a wrapper version", ErrBlobBundleShape, fork)
	case want != nil && bundle.Version != nil && *want != *bundle.Version:
		return fmt.Errorf("%w: fork %s wants wrapper version %d, got %d", ErrBlobBundleShape, fork, *want, *bundle.Version)
	}
	return nil
}
