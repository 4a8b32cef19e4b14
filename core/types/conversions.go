// (c) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"math/big"

	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"
)

// ConvertHeaderFromEVM converts an EVM Header to ethtypes.Header (geth types)
func ConvertHeaderFromEVM(h *Header) *ethtypes.Header {
	if h == nil {
		return nil
	}

	// Convert evm types to geth types
	var bloom ethtypes.Bloom
	copy(bloom[:], h.Bloom[:])

	var nonce ethtypes.BlockNonce
	copy(nonce[:], h.Nonce[:])

	result := &ethtypes.Header{
		ParentHash:  h.ParentHash,
		UncleHash:   h.UncleHash,
		Coinbase:    h.Coinbase,
		Root:        h.Root,
		TxHash:      h.TxHash,
		ReceiptHash: h.ReceiptHash,
		Bloom:       bloom,
		Difficulty:  h.Difficulty,
		Number:      h.Number,
		GasLimit:    h.GasLimit,
		GasUsed:     h.GasUsed,
		Time:        h.Time,
		Extra:       h.Extra,
		MixDigest:   h.MixDigest,
		Nonce:       nonce,
		BaseFee:     h.BaseFee,
	}

	// Note: ExtDataHash, ExtDataGasUsed, BlockGasCost, BlobGasUsed, ExcessBlobGas, 
	// and ParentBeaconRoot are EVM-specific fields not present in geth types
	// They will be lost in the conversion

	return result
}

// ConvertHeaderToEVM converts an ethtypes.Header (geth types) to EVM Header
func ConvertHeaderToEVM(h *ethtypes.Header) *Header {
	if h == nil {
		return nil
	}

	// Convert geth types to evm types
	var bloom Bloom
	copy(bloom[:], h.Bloom[:])

	var nonce BlockNonce
	copy(nonce[:], h.Nonce[:])

	result := &Header{
		ParentHash:  h.ParentHash,
		UncleHash:   h.UncleHash,
		Coinbase:    h.Coinbase,
		Root:        h.Root,
		TxHash:      h.TxHash,
		ReceiptHash: h.ReceiptHash,
		Bloom:       bloom,
		Difficulty:  h.Difficulty,
		Number:      h.Number,
		GasLimit:    h.GasLimit,
		GasUsed:     h.GasUsed,
		Time:        h.Time,
		Extra:       h.Extra,
		MixDigest:   h.MixDigest,
		Nonce:       nonce,
		BaseFee:     h.BaseFee,
	}

	// ExtDataHash, ExtDataGasUsed, BlockGasCost, BlobGasUsed, ExcessBlobGas,
	// and ParentBeaconRoot will be set to zero values

	return result
}

// ConvertBlockFromEVM converts an EVM Block to ethtypes.Block (geth types)
func ConvertBlockFromEVM(b *Block) *ethtypes.Block {
	if b == nil {
		return nil
	}

	header := ConvertHeaderFromEVM(b.Header())
	
	// Convert transactions
	var transactions []*ethtypes.Transaction
	for _, tx := range b.Transactions() {
		transactions = append(transactions, ConvertTransactionFromEVM(tx))
	}

	// Convert uncles
	var uncles []*ethtypes.Header
	for _, uncle := range b.Uncles() {
		uncles = append(uncles, ConvertHeaderFromEVM(uncle))
	}

	// Create new block with converted data
	body := ethtypes.Body{
		Transactions: transactions,
		Uncles:       uncles,
	}
	return ethtypes.NewBlockWithHeader(header).WithBody(body)
}

// ConvertBlockToEVM converts an ethtypes.Block (geth types) to EVM Block
func ConvertBlockToEVM(b *ethtypes.Block) *Block {
	if b == nil {
		return nil
	}

	header := ConvertHeaderToEVM(b.Header())
	
	// Convert transactions
	var transactions []*Transaction
	for _, tx := range b.Transactions() {
		transactions = append(transactions, ConvertTransactionToEVM(tx))
	}

	// Convert uncles
	var uncles []*Header
	for _, uncle := range b.Uncles() {
		uncles = append(uncles, ConvertHeaderToEVM(uncle))
	}

	// Create new block with converted data
	return NewBlockWithHeader(header).WithBody(transactions, uncles)
}

// ConvertTransactionFromEVM unwraps a Transaction to its canonical geth
// encoding. Privileged-tx status is lost, since it has no wire
// representation: it is re-derived at ingestion from the tx type byte.
func ConvertTransactionFromEVM(tx *Transaction) *ethtypes.Transaction {
	if tx == nil {
		return nil
	}
	return tx.Transaction
}

// ConvertTransactionToEVM wraps a canonical geth transaction, tagging it
// privileged if its type byte is PrivilegedTxType.
func ConvertTransactionToEVM(tx *ethtypes.Transaction) *Transaction {
	if tx == nil {
		return nil
	}
	return NewTransaction(tx, tx.Type() == PrivilegedTxType)
}

// ConvertReceiptFromEVM maps a rollup Receipt onto geth's canonical receipt
// layout for RPC/wire compatibility.
func ConvertReceiptFromEVM(r *Receipt) *ethtypes.Receipt {
	if r == nil {
		return nil
	}
	var bloom ethtypes.Bloom
	copy(bloom[:], r.Bloom[:])
	out := &ethtypes.Receipt{
		Type:              r.Type,
		Status:            r.Status,
		CumulativeGasUsed: r.CumulativeGasUsed,
		Bloom:             bloom,
		TxHash:            r.TxHash,
		GasUsed:           r.GasUsed,
		EffectiveGasPrice: r.EffectiveGasPrice,
		BlobGasUsed:       r.BlobGasUsed,
		BlobGasPrice:      r.BlobGasPrice,
		BlockNumber:       new(big.Int).SetUint64(r.BlockNumber),
		TransactionIndex:  r.TransactionIndex,
	}
	if r.ContractAddress != nil {
		out.ContractAddress = *r.ContractAddress
	}
	for _, l := range r.Logs {
		out.Logs = append(out.Logs, &ethtypes.Log{
			Address:     l.Address,
			Topics:      l.Topics,
			Data:        l.Data,
			BlockNumber: l.BlockNumber,
			TxHash:      l.TxHash,
			TxIndex:     l.TxIndex,
			Index:       l.Index,
		})
	}
	return out
}

// ConvertReceiptToEVM maps a geth receipt onto the rollup's Receipt layout.
func ConvertReceiptToEVM(r *ethtypes.Receipt) *Receipt {
	if r == nil {
		return nil
	}
	var bloom Bloom
	copy(bloom[:], r.Bloom[:])
	out := &Receipt{
		TxHash:            r.TxHash,
		Status:            r.Status,
		Type:              r.Type,
		CumulativeGasUsed: r.CumulativeGasUsed,
		GasUsed:           r.GasUsed,
		EffectiveGasPrice: r.EffectiveGasPrice,
		Bloom:             bloom,
		BlobGasUsed:       r.BlobGasUsed,
		BlobGasPrice:      r.BlobGasPrice,
		TransactionIndex:  r.TransactionIndex,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	if (r.ContractAddress != common.Address{}) {
		addr := r.ContractAddress
		out.ContractAddress = &addr
	}
	for _, l := range r.Logs {
		out.Logs = append(out.Logs, &Log{
			Address:     l.Address,
			Topics:      l.Topics,
			Data:        l.Data,
			BlockNumber: l.BlockNumber,
			TxHash:      l.TxHash,
			TxIndex:     l.TxIndex,
			Index:       l.Index,
		})
	}
	return out
}