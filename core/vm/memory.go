// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/holiman/uint256"
)

// sharedBuffer is the reference-counted backing array for a call tree's
// memory, per spec.md §9 "Memory as a shared byte buffer with per-frame
// base offset". Frames never own their own growable slice; they each hold
// a (base, len) view into this single buffer, which avoids a full copy on
// every CALL the way a naively-owned-per-frame Vec would require.
type sharedBuffer struct {
	buf []byte
}

func newSharedBuffer() *sharedBuffer {
	return &sharedBuffer{buf: make([]byte, 0, 4096)}
}

func (b *sharedBuffer) ensure(n int) {
	if n <= len(b.buf) {
		return
	}
	if n <= cap(b.buf) {
		b.buf = b.buf[:n]
		return
	}
	grown := make([]byte, n)
	copy(grown, b.buf)
	b.buf = grown
}

// Memory is a frame's view into the shared buffer: base offset plus
// logical length. All reads/writes are translated through base.
type Memory struct {
	shared *sharedBuffer
	base   int
	length int
}

// newRootMemory creates the memory for a transaction's outermost frame.
func newRootMemory() *Memory {
	return &Memory{shared: newSharedBuffer(), base: 0, length: 0}
}

// child creates a sub-call's memory view, based at the parent's current
// length, per the spec's call-frame memory-sharing strategy.
func (m *Memory) child() *Memory {
	return &Memory{shared: m.shared, base: m.base + m.length, length: 0}
}

// release zeroes the frame's segment of the shared buffer before the frame
// exits, so a future sibling/parent view never observes stale callee data.
func (m *Memory) release() {
	end := m.base + m.length
	if end > len(m.shared.buf) {
		end = len(m.shared.buf)
	}
	for i := m.base; i < end; i++ {
		m.shared.buf[i] = 0
	}
}

func (m *Memory) Len() int { return m.length }

// wordCount rounds n up to the next 32-byte word.
func wordCount(n uint64) uint64 {
	return (n + 31) / 32
}

// physicalRound rounds a byte count up to the next 64-byte multiple, the
// "allocator friendliness" rounding spec.md §4.C mandates in addition to the
// 32-byte word rounding used for gas accounting.
func physicalRound(n uint64) uint64 {
	return (n + 63) &^ 63
}

// expansionCost computes cost(new) - cost(current) using the EVM's
// quadratic memory-gas formula: words^2/512 + 3*words. It is monotone, and
// satisfies expansionCost(new,current) + cost(current) = cost(new) for
// new >= current (spec.md §8).
func memoryGasCost(words uint64) uint64 {
	return words*words/512 + 3*words
}

func expansionCost(newSize, currentSize uint64) uint64 {
	if newSize <= currentSize {
		return 0
	}
	newWords := wordCount(newSize)
	curWords := wordCount(currentSize)
	// new >= current implies newWords >= curWords, so this can never
	// underflow.
	return memoryGasCost(newWords) - memoryGasCost(curWords)
}

// resize grows the frame's logical length to at least `size` bytes,
// physically rounding the underlying allocation to a 64-byte multiple. It
// does not charge gas; callers must call expansionCost first.
func (m *Memory) resize(size uint64) {
	if uint64(m.length) >= size {
		return
	}
	physical := physicalRound(size)
	m.shared.ensure(m.base + int(physical))
	m.length = int(size)
}

func (m *Memory) slice(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	start := m.base + int(offset)
	return m.shared.buf[start : start+int(size)]
}

// Set writes data into memory at offset; the caller must have already
// resized memory to cover [offset, offset+len(data)).
func (m *Memory) Set(offset uint64, data []byte) {
	copy(m.slice(offset, uint64(len(data))), data)
}

// SetWord writes a 32-byte big-endian word at offset.
func (m *Memory) SetWord(offset uint64, val *uint256.Int) {
	b := val.Bytes32()
	m.Set(offset, b[:])
}

// GetCopy returns a fresh copy of memory[offset:offset+size].
func (m *Memory) GetCopy(offset, size uint64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, m.slice(offset, size))
	return out
}

// GetPtr returns a view into memory without copying; callers must not
// retain it past the frame's lifetime.
func (m *Memory) GetPtr(offset, size uint64) []byte {
	return m.slice(offset, size)
}
