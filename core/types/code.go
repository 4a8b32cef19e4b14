// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/crypto"
)

// Code is raw contract bytecode plus its hash and size, shared by hash
// across every account that deployed identical bytecode. It is produced on
// first access and cached by the process-wide codeStore below.
type Code struct {
	Bytes []byte
	Hash  common.Hash
	Size  int
}

// NewCode hashes and wraps raw bytecode.
func NewCode(bytes []byte) *Code {
	return &Code{
		Bytes: bytes,
		Hash:  crypto.Keccak256Hash(bytes),
		Size:  len(bytes),
	}
}

var codeStore = struct {
	mu    sync.RWMutex
	codes map[common.Hash]*Code
}{codes: make(map[common.Hash]*Code)}

// CodeByHash returns the shared Code for hash, creating and interning it
// from `bytes` on first access. Subsequent calls for the same hash return
// the same *Code regardless of the bytes argument given.
func CodeByHash(hash common.Hash, bytes []byte) *Code {
	codeStore.mu.RLock()
	if c, ok := codeStore.codes[hash]; ok {
		codeStore.mu.RUnlock()
		return c
	}
	codeStore.mu.RUnlock()

	c := &Code{Bytes: bytes, Hash: hash, Size: len(bytes)}
	codeStore.mu.Lock()
	if existing, ok := codeStore.codes[hash]; ok {
		codeStore.mu.Unlock()
		return existing
	}
	codeStore.codes[hash] = c
	codeStore.mu.Unlock()
	return c
}
