// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import "errors"

// Execution-outcome errors. These are never surfaced to the host as faults:
// OOG and REVERT are execution outcomes (spec.md §7), not errors the block
// executor treats as invalid-block conditions.
var (
	ErrOutOfGas           = errors.New("out of gas")
	ErrStackOverflow      = errors.New("stack overflow")
	ErrStackUnderflow     = errors.New("stack underflow")
	ErrInvalidOpcode      = errors.New("invalid opcode")
	ErrInvalidJump        = errors.New("invalid jump destination")
	ErrWriteProtection    = errors.New("write protection in static call")
	ErrReturnDataOOB      = errors.New("return data out of bounds")
	ErrDepthLimit         = errors.New("max call depth exceeded")
	ErrInsufficientBalance = errors.New("insufficient balance for transfer")
	ErrExecutionReverted  = errors.New("execution reverted")
)
