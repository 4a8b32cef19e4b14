// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"fmt"

	"github.com/holiman/uint256"
)

const maxStackDepth = 1024

// Stack is the EVM's 256-bit-word stack. Operand access is fixed-arity
// (popN) and single-element push, matching the interpreter's opcode-level
// contract in spec.md §4.C.
type Stack struct {
	data []uint256.Int
}

func newStack() *Stack {
	return &Stack{data: make([]uint256.Int, 0, 16)}
}

func (s *Stack) len() int { return len(s.data) }

func (s *Stack) push(v *uint256.Int) error {
	if len(s.data) >= maxStackDepth {
		return ErrStackOverflow
	}
	s.data = append(s.data, *v)
	return nil
}

func (s *Stack) pop() (uint256.Int, error) {
	n := len(s.data)
	if n == 0 {
		return uint256.Int{}, ErrStackUnderflow
	}
	v := s.data[n-1]
	s.data = s.data[:n-1]
	return v, nil
}

// popN pops exactly n values, ordered top-first: out[0] (pop1) is the
// former top of stack.
func (s *Stack) popN(n int) ([]uint256.Int, error) {
	if len(s.data) < n {
		return nil, ErrStackUnderflow
	}
	out := make([]uint256.Int, n)
	base := len(s.data) - n
	for i := 0; i < n; i++ {
		out[i] = s.data[base+n-1-i]
	}
	s.data = s.data[:base]
	return out, nil
}

func (s *Stack) peek(fromTop int) (*uint256.Int, error) {
	idx := len(s.data) - 1 - fromTop
	if idx < 0 {
		return nil, ErrStackUnderflow
	}
	return &s.data[idx], nil
}

// dup duplicates the n-th item from the top (1-indexed, as in DUPn) onto
// the top of the stack.
func (s *Stack) dup(n int) error {
	idx := len(s.data) - n
	if idx < 0 {
		return ErrStackUnderflow
	}
	if len(s.data) >= maxStackDepth {
		return ErrStackOverflow
	}
	v := s.data[idx]
	s.data = append(s.data, v)
	return nil
}

// swap exchanges the top item with the n-th item from the top (1-indexed,
// as in SWAPn).
func (s *Stack) swap(n int) error {
	top := len(s.data) - 1
	idx := top - n
	if idx < 0 {
		return ErrStackUnderflow
	}
	s.data[top], s.data[idx] = s.data[idx], s.data[top]
	return nil
}

func (s *Stack) String() string {
	return fmt.Sprintf("stack(%d)", len(s.data))
}
