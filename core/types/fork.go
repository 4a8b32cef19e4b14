// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

// Fork names a protocol version that selects gas-cost tables and opcode
// availability. Ordered oldest to newest; ForkAtOrBefore/ForkAtOrAfter
// compare by this ordering, not lexicographically.
var forkOrder = []string{
	"istanbul",
	"berlin",
	"london",
	"paris",
	"shanghai",
	"cancun",
	"prague",
	"osaka",
}

func forkIndex(name string) int {
	for i, f := range forkOrder {
		if f == name {
			return i
		}
	}
	// Unknown forks are treated as the newest, so unrecognized future fork
	// names don't silently fall back to legacy gas tables.
	return len(forkOrder)
}

// ForkAtOrBefore reports whether `fork` is at or before `boundary` in the
// canonical fork ordering.
func ForkAtOrBefore(fork, boundary string) bool {
	return forkIndex(fork) <= forkIndex(boundary)
}

// ForkAtOrAfter reports whether `fork` is at or after `boundary`.
func ForkAtOrAfter(fork, boundary string) bool {
	return forkIndex(fork) >= forkIndex(boundary)
}
