// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jit

import (
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/rollup/core/vm"
)

// Dispatcher composes the cache, counter, and an optional Backend into the
// JIT tier's entry point. With no backend registered, Run always returns
// handled=false and the caller must fall back to the interpreter -- this is
// the package's "provable no-op" contract from spec.md §9.
type Dispatcher struct {
	cache   *CodeCache
	counter *Counter
	config  Config
	backend Backend

	mu             sync.Mutex
	validationRuns map[cacheKey]int
}

func NewDispatcher(cache *CodeCache, counter *Counter, cfg Config, backend Backend) *Dispatcher {
	return &Dispatcher{
		cache:          cache,
		counter:        counter,
		config:         cfg,
		backend:        backend,
		validationRuns: make(map[cacheKey]int),
	}
}

// Run attempts to execute frame through the JIT tier. caller drives any
// sub-calls the JIT backend suspends on, exactly as the interpreter would
// via the Caller interface -- this composition may recurse, since the
// sub-call itself may re-enter Run. freshFrame, if non-nil, builds an
// equivalent frame from scratch for differential validation; it is only
// invoked when this (hash, fork) is still within MaxValidationRuns.
//
// Run returns handled=false whenever the JIT tier declines (no backend,
// below the compilation threshold, oversized bytecode, compile failure, or
// an internal JIT failure) -- the caller must then run frame through the
// interpreter itself.
func (d *Dispatcher) Run(host vm.Host, frame *vm.Frame, fork string, caller vm.Caller, freshFrame func() *vm.Frame) (vm.Result, bool) {
	if d.backend == nil {
		return vm.Result{}, false
	}
	hash := frame.CodeHash
	if d.cache.IsOversized(hash, fork) {
		return vm.Result{}, false
	}

	count := d.counter.Increment(hash, fork)
	compiled, ok := d.cache.Get(hash, fork)
	if !ok {
		if count < d.config.CompilationThreshold {
			return vm.Result{}, false
		}
		if len(frame.Code) > d.config.MaxBytecodeSize {
			d.cache.MarkOversized(hash, fork)
			return vm.Result{}, false
		}
		analyzed := Analyze(hash, frame.Code)
		c, err := d.backend.Compile(analyzed)
		if err != nil {
			d.cache.MarkOversized(hash, fork)
			return vm.Result{}, false
		}
		compiled = c
		d.cache.Put(hash, fork, compiled)
	}

	outcome := d.backend.Execute(compiled, host, frame)
	outcome = d.driveSuspensions(outcome, host, frame, caller)

	if outcome.Kind == OutcomeHalt {
		log.Debug("jit: internal failure, invalidating entry and falling back to interpreter", "hash", hash, "fork", fork, "err", outcome.Err)
		d.cache.Invalidate(hash, fork)
		return vm.Result{}, false
	}

	if freshFrame != nil && d.shouldValidate(hash, fork) {
		d.validate(hash, fork, outcome, freshFrame())
	}

	return toResult(outcome), true
}

// driveSuspensions loops Backend.Resume against the sub-call pipeline until
// the JIT frame reaches a terminal outcome.
func (d *Dispatcher) driveSuspensions(outcome Outcome, host vm.Host, frame *vm.Frame, caller vm.Caller) Outcome {
	for outcome.Kind == OutcomeSuspended {
		sc := outcome.SubCall
		var ret []byte
		var gasLeft uint64
		var success bool
		if sc.IsCreate {
			ret, gasLeft, _, success, _ = caller.Create(frame, sc.CreateKind, sc.Value, sc.Input, sc.Gas, nil)
		} else {
			ret, gasLeft, success, _ = caller.Call(frame, sc.Kind, sc.Addr, sc.Value, sc.Input, sc.Gas, sc.Static)
		}
		outcome = d.backend.Resume(outcome.ResumeState, ret, gasLeft, success, host, frame)
	}
	return outcome
}

func (d *Dispatcher) shouldValidate(hash common.Hash, fork string) bool {
	k := cacheKey{hash, fork}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.validationRuns[k] >= d.config.MaxValidationRuns {
		return false
	}
	d.validationRuns[k]++
	return true
}

// validate re-runs frame through the interpreter and compares
// (success, output, pre-refund gas) against the JIT outcome, per spec.md
// §4.D/§9. A mismatch invalidates the cache entry; it never panics or
// blocks the caller's result, since the JIT outcome is already authoritative
// for this call.
func (d *Dispatcher) validate(hash common.Hash, fork string, jitOutcome Outcome, replay *vm.Frame) {
	interp := vm.NewInterpreter().Run(replay)
	jitPreRefund := jitOutcome.GasUsed + jitOutcome.GasRefund
	interpPreRefund := interp.GasUsed + interp.GasRefund
	mismatch := interp.Success != (jitOutcome.Kind == OutcomeSuccess) || interpPreRefund != jitPreRefund
	if !mismatch && interp.Success {
		mismatch = string(interp.ReturnData) != string(jitOutcome.Output)
	}
	if mismatch {
		log.Warn("jit: differential validation mismatch, invalidating cache entry",
			"hash", hash, "fork", fork,
			"jitGas", jitPreRefund, "interpGas", interpPreRefund)
		d.cache.Invalidate(hash, fork)
	}
}

func toResult(o Outcome) vm.Result {
	switch o.Kind {
	case OutcomeSuccess:
		return vm.Result{Success: true, GasUsed: o.GasUsed, GasRefund: o.GasRefund, ReturnData: o.Output}
	case OutcomeRevert:
		return vm.Result{Reverted: true, GasUsed: o.GasUsed, ReturnData: o.Output, Err: vm.ErrExecutionReverted}
	default:
		return vm.Result{Err: o.Err}
	}
}
