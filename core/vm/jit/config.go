// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package jit

// Config bounds the JIT tier's resource usage and compilation policy.
type Config struct {
	// CompilationThreshold is the execution count at which a (hash, fork)
	// becomes eligible for compilation.
	CompilationThreshold uint64
	// MaxCacheEntries bounds the compiled-code cache; insertion past this
	// evicts the oldest entry.
	MaxCacheEntries int
	// MaxBytecodeSize rejects compilation of bytecode larger than this many
	// bytes; such code is marked oversized and never retried.
	MaxBytecodeSize int
	// MaxValidationRuns bounds how many times a freshly-compiled entry is
	// differentially validated against the interpreter before being trusted
	// outright.
	MaxValidationRuns int
}

// DefaultConfig matches the production defaults spec.md §9 recommends:
// a low single-digit validation ceiling, and a modest cache so a hot
// contract compiles quickly without unbounded memory growth.
func DefaultConfig() Config {
	return Config{
		CompilationThreshold: 32,
		MaxCacheEntries:      4096,
		MaxBytecodeSize:      24576, // EIP-170 contract size limit
		MaxValidationRuns:    3,
	}
}
