// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package blockexec implements spec.md §4.E: executing a sequence of
// transactions against a state host, producing receipts, applying the
// rollup's L2 fee-distribution rule, and (optionally) assembling an
// EIP-7928 Block Access List. It is grounded on the teacher's
// core/state_processor.go per-transaction loop shape, re-expressed against
// this module's own core/vm interpreter/JIT tiers instead of go-ethereum's.
package blockexec

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	gtypes "github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/crypto"
	"github.com/luxfi/log"
	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/core/vm"
	"github.com/luxfi/rollup/core/vm/jit"
)

func createAddress(from common.Address, nonce uint64) common.Address {
	return crypto.CreateAddress(from, nonce)
}

func create2Address(from common.Address, salt *uint256.Int, initcode []byte) common.Address {
	return crypto.CreateAddress2(from, salt.Bytes32(), crypto.Keccak256(initcode))
}

// Gas costs for intrinsic transaction validation, per EIP-2028 (calldata)
// and EIP-3860 (initcode word cost for contract creation).
const (
	TxGas                 = 21000
	TxGasContractCreation = 53000
	TxDataZeroGas         = 4
	TxDataNonZeroGasEIP2028 = 16
	InitCodeWordGas       = 2

	MaxInitCodeSize = 49152 // EIP-3860, 2 * MaxCodeSize
)

// ErrInitCodeTooLarge is returned when a contract-creation transaction's
// init code exceeds MaxInitCodeSize (EIP-3860).
var ErrInitCodeTooLarge = errors.New("max initcode size exceeded")

// ErrNonceTooLow / ErrNonceTooHigh / ErrInsufficientFundsForGas are the
// per-transaction validity errors (spec.md §4.E steps 1-2) that block
// execution returns before the transaction's code runs. The sender's nonce
// has already been incremented when ErrInsufficientFundsForGas is returned.
var (
	ErrNonceTooLow              = errors.New("nonce too low")
	ErrNonceTooHigh             = errors.New("nonce too high")
	ErrInsufficientFundsForGas  = errors.New("insufficient funds for gas * price + value")
)

// intrinsicGas computes the fixed up-front gas charge for a transaction:
// the base 21000 (or 53000 for creation), plus per-byte calldata cost, plus
// (for creation) the EIP-3860 initcode word cost.
func intrinsicGas(data []byte, isCreate bool) (uint64, error) {
	var gas uint64 = TxGas
	if isCreate {
		gas = TxGasContractCreation
		if len(data) > MaxInitCodeSize {
			return 0, ErrInitCodeTooLarge
		}
	}
	if len(data) == 0 {
		return gas, nil
	}
	var nz uint64
	for _, b := range data {
		if b != 0 {
			nz++
		}
	}
	z := uint64(len(data)) - nz
	gas += nz * TxDataNonZeroGasEIP2028
	gas += z * TxDataZeroGas
	if isCreate {
		words := (uint64(len(data)) + 31) / 32
		gas += words * InitCodeWordGas
	}
	return gas, nil
}

// Executor runs transactions against a vm.StateHost, dispatching each call
// frame through the JIT tier first (if configured) and falling back to the
// plain interpreter, exactly as spec.md §4.D's composition describes. It
// implements vm.Caller so CALL/CREATE opcodes and JIT suspend/resume
// sub-calls recurse back through this same pipeline.
type Executor struct {
	Signer gtypes.Signer
	Fork   string

	Dispatcher *jit.Dispatcher // nil disables the JIT tier entirely

	FeeConfig types.FeeConfig
}

// NewExecutor builds an Executor for one block's worth of transactions.
func NewExecutor(signer gtypes.Signer, fork string, dispatcher *jit.Dispatcher, feeConfig types.FeeConfig) *Executor {
	return &Executor{Signer: signer, Fork: fork, Dispatcher: dispatcher, FeeConfig: feeConfig}
}

// ExecuteBlock runs every transaction in txs against host in order,
// returning one receipt per transaction. gasPool is shared across all of
// them, exactly as the teacher's state_processor.go does with its per-block
// GasPool.
func (e *Executor) ExecuteBlock(host *vm.StateHost, block vm.BlockContext, txs []*types.Transaction) ([]*types.Receipt, error) {
	gp := new(GasPool).AddGas(block.GasLimit)
	receipts := make([]*types.Receipt, 0, len(txs))
	var cumulativeGasUsed uint64

	for i, tx := range txs {
		receipt, err := e.executeTx(host, block, tx, gp, uint(i))
		if err != nil {
			return nil, fmt.Errorf("tx %d (%s): %w", i, tx.Hash(), err)
		}
		cumulativeGasUsed += receipt.GasUsed
		receipt.CumulativeGasUsed = cumulativeGasUsed
		receipt.BlockNumber = block.BlockNumber
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

// executeTx implements spec.md §4.E's seven-step per-transaction sequence.
func (e *Executor) executeTx(host *vm.StateHost, block vm.BlockContext, tx *types.Transaction, gp *GasPool, index uint) (*types.Receipt, error) {
	// 1. Recover sender. Privileged (L1->L2 deposit) transactions carry an
	// already-known sender and bypass signature recovery entirely.
	sender, err := e.sender(tx)
	if err != nil {
		return nil, err
	}

	// 2. Verify and increment nonce, unless privileged: deposits credit
	// balances without consuming a nonce slot, per core/types.Transaction's
	// doc comment.
	if !tx.Privileged {
		cur := host.GetNonce(sender)
		if tx.Nonce() < cur {
			return nil, ErrNonceTooLow
		}
		if tx.Nonce() > cur {
			return nil, ErrNonceTooHigh
		}
		host.SetNonce(sender, cur+1)
	}

	isCreate := tx.Kind().IsCreate()
	igas, err := intrinsicGas(tx.Data(), isCreate)
	if err != nil {
		return nil, err
	}
	if tx.Gas() < igas {
		return nil, vm.ErrOutOfGas
	}
	if err := gp.SubGas(tx.Gas()); err != nil {
		return nil, err
	}

	effectiveGasPrice, err := tx.EffectiveGasPrice(block.BaseFee)
	if err != nil {
		return nil, err
	}
	if !tx.Privileged {
		upfront := new(uint256.Int).Mul(effectiveGasPrice, new(uint256.Int).SetUint64(tx.Gas()))
		valueU, overflow := uint256.FromBig(tx.Value())
		if overflow {
			return nil, errors.New("tx value overflows 256 bits")
		}
		upfront.Add(upfront, valueU)
		if host.GetBalance(sender).Lt(upfront) {
			return nil, ErrInsufficientFundsForGas
		}
	}

	// 4. Execute via the EVM core, which may dispatch the JIT tier.
	execGas := tx.Gas() - igas
	valueU, _ := uint256.FromBig(tx.Value())
	snapshot := host.Snapshot()

	var res vm.Result
	var createdAddr common.Address
	if isCreate {
		nonce := host.GetNonce(sender)
		createdAddr = createAddress(sender, nonce)
		if !valueU.IsZero() {
			host.SubBalance(sender, valueU)
			host.AddBalance(createdAddr, valueU)
		}
		frame := vm.NewFrame(host, e, common.Hash{}, tx.Data(), nil, createdAddr, sender, valueU, execGas, false)
		res = e.run(host, frame)
		if res.Success {
			host.SetCode(createdAddr, res.ReturnData)
		}
	} else {
		to := tx.Kind().Address
		if !valueU.IsZero() {
			host.SubBalance(sender, valueU)
			host.AddBalance(to, valueU)
		}
		code := host.GetCode(to)
		frame := vm.NewFrame(host, e, host.GetCodeHash(to), code, tx.Data(), to, sender, valueU, execGas, false)
		res = e.run(host, frame)
	}

	totalGasUsed := igas + res.GasUsed
	if !res.Success {
		host.RevertToSnapshot(snapshot)
	}

	// 5. Fee distribution.
	if !tx.Privileged {
		distributeFees(host, sender, block.Coinbase, e.FeeConfig, totalGasUsed, effectiveGasPrice, block.BaseFee)
	}

	// 6. Receipt construction.
	receipt := &types.Receipt{
		TxHash:            tx.Hash(),
		Type:              tx.Type(),
		GasUsed:           totalGasUsed,
		EffectiveGasPrice: effectiveGasPrice.ToBig(),
		TransactionIndex:  index,
	}
	if res.Success {
		receipt.Status = types.ReceiptStatusSuccessful
	} else {
		receipt.Status = types.ReceiptStatusFailed
		log.Debug("blockexec: transaction failed", "hash", tx.Hash(), "err", res.Err)
	}
	if isCreate && res.Success {
		addr := createdAddr
		receipt.ContractAddress = &addr
	}
	for _, l := range host.Logs() {
		receipt.Logs = append(receipt.Logs, &types.Log{
			Address: l.Address,
			Topics:  l.Topics,
			Data:    l.Data,
			TxHash:  tx.Hash(),
			TxIndex: index,
		})
	}
	receipt.Bloom = bloomFromLogs(receipt.Logs)

	return receipt, nil
}

func (e *Executor) sender(tx *types.Transaction) (common.Address, error) {
	if e.Signer == nil {
		return common.Address{}, errors.New("executor: no signer configured")
	}
	return gtypes.Sender(e.Signer, tx.Transaction)
}

// Call implements vm.Caller: it runs the callee's code in a child frame via
// the JIT tier (if configured) falling back to the interpreter, exactly as
// spec.md §4.D describes. parent is always the frame executing the
// CALL/CALLCODE/DELEGATECALL/STATICCALL opcode that triggered this.
func (e *Executor) Call(parent *vm.Frame, kind vm.CallKind, addr common.Address, value *uint256.Int, input []byte, gas uint64, static bool) ([]byte, uint64, bool, error) {
	host := parent.Host
	code := host.GetCode(addr)
	codeHash := host.GetCodeHash(addr)

	from := parent.Address
	if !value.IsZero() && kind == vm.CallKindCall {
		host.SubBalance(from, value)
		host.AddBalance(addr, value)
	}

	frame := parent.Sub(codeHash, code, input, calleeAddress(kind, addr, parent), from, value, gas, static)
	res := e.run(host, frame)
	frame.Release()
	return res.ReturnData, frame.Gas, res.Success, res.Err
}

// Create implements vm.Caller for CREATE/CREATE2: it derives the new
// contract's address, runs initcode as the constructor, and installs the
// returned runtime code on success.
func (e *Executor) Create(parent *vm.Frame, kind vm.CreateKindOp, value *uint256.Int, initcode []byte, gas uint64, salt *uint256.Int) ([]byte, uint64, common.Address, bool, error) {
	host := parent.Host
	from := parent.Address
	nonce := host.GetNonce(from)

	var addr common.Address
	if kind == vm.CreateKindCreate2 && salt != nil {
		addr = create2Address(from, salt, initcode)
	} else {
		addr = createAddress(from, nonce)
	}

	if !value.IsZero() {
		host.SubBalance(from, value)
		host.AddBalance(addr, value)
	}

	frame := parent.Sub(common.Hash{}, initcode, nil, addr, from, value, gas, false)
	res := e.run(host, frame)
	if res.Success {
		host.SetCode(addr, res.ReturnData)
	}
	frame.Release()
	return res.ReturnData, frame.Gas, addr, res.Success, res.Err
}

// BlockHash implements vm.Caller; the rollup's sequencer supplies recent
// block hashes out of band (spec.md §4.E does not define BLOCKHASH's
// behavior beyond "must be available to opcodes"), so a zero-value Executor
// returns the zero hash rather than fabricating one.
func (e *Executor) BlockHash(number uint64) common.Hash { return common.Hash{} }

// run dispatches frame through the JIT tier first, falling back to the
// interpreter, matching the Dispatcher.Run contract exactly.
func (e *Executor) run(host vm.Host, frame *vm.Frame) vm.Result {
	if e.Dispatcher != nil {
		if res, handled := e.Dispatcher.Run(host, frame, e.Fork, e, nil); handled {
			return res
		}
	}
	return vm.NewInterpreter().Run(frame)
}

func calleeAddress(kind vm.CallKind, target common.Address, parent *vm.Frame) common.Address {
	if kind == vm.CallKindDelegateCall || kind == vm.CallKindCallCode {
		return parent.Address
	}
	return target
}
