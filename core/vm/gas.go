// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

// Gas cost constants, EIP-2929 warm/cold access costs, and the
// fork-dependent SSTORE refund constant discussed in spec.md §4.D/§9.
const (
	GasQuickStep   = 2
	GasFastestStep = 3
	GasFastStep    = 5
	GasMidStep     = 8
	GasSlowStep    = 10
	GasExtStep     = 20

	ColdSloadCost       = 2100
	ColdAccountAccessCost = 2600
	WarmStorageReadCost = 100

	SstoreSetGas   = 20000
	SstoreResetGas = 2900
	SstoreClearsScheduleRefundEIP3529 = 4800

	// SstoreClearsScheduleRefundPreEIP3529 is the reference JIT-builder's
	// refund constant for SSTORE clears: a known upstream mismatch (spec.md
	// §9) versus the interpreter's post-EIP-3529 value above. Tests MUST
	// compare pre-refund gas (gas_used + gas_refunded) when SSTORE clears
	// are involved, never raw refund totals, per spec.md §4.D.
	SstoreClearsScheduleRefundPreEIP3529 = 15000

	JumpdestGas = 1
	Keccak256Gas     = 30
	Keccak256WordGas = 6

	LogGas      = 375
	LogDataGas  = 8
	LogTopicGas = 375

	CreateGas  = 32000
	CallValueTransferGas = 9000
	CallNewAccountGas    = 25000
	CallStipend          = 2300
)

// expGas returns the fork-dependent gas for EXP: a fixed base cost plus a
// per-byte cost for the exponent's minimal big-endian byte length. EIP-160
// (Spurious Dragon / all post-Istanbul forks here) uses 50 per byte; earlier
// forks used 10. The rollup core targets Istanbul+ only (per params/ fork
// list), so only the 50-per-byte table is exposed.
func expGas(expByteLen int) uint64 {
	return GasSlowStep + 50*uint64(expByteLen)
}

// RefundCap bounds accumulated gas refunds at transaction finalization.
// Cancun (EIP-3529) caps refunds at gasUsed/5; earlier forks capped at
// gasUsed/2. The rollup core is Cancun+, so only the /5 rule is used.
func RefundCap(gasUsedPreRefund uint64) uint64 {
	return gasUsedPreRefund / 5
}
