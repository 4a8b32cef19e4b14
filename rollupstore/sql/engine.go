// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sql is a database/sql-backed rollupstore.Engine, durable across
// restarts. It is driver-agnostic (any database/sql driver works) but is
// exercised and tested against github.com/mattn/go-sqlite3, the same driver
// the example pack already depends on for embedded SQL storage.
package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/rollupstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	number INTEGER PRIMARY KEY,
	first_block INTEGER NOT NULL,
	last_block INTEGER NOT NULL,
	state_root BLOB NOT NULL,
	l1_in_rolling_hash BLOB NOT NULL,
	l2_in_rolling_hashes BLOB NOT NULL,
	l1_out_hashes BLOB NOT NULL,
	non_privileged_tx_count INTEGER NOT NULL,
	balance_diffs BLOB NOT NULL,
	blobs_bundle BLOB,
	commit_tx BLOB,
	verify_tx BLOB
);
CREATE TABLE IF NOT EXISTS block_batch (
	block_number INTEGER PRIMARY KEY,
	batch_number INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS prover_inputs (
	batch_number INTEGER NOT NULL,
	prover_version TEXT NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (batch_number, prover_version)
);
CREATE TABLE IF NOT EXISTS proofs (
	batch_number INTEGER NOT NULL,
	prover_type TEXT NOT NULL,
	proof BLOB NOT NULL,
	PRIMARY KEY (batch_number, prover_type)
);
CREATE TABLE IF NOT EXISTS signatures (
	batch_number INTEGER PRIMARY KEY,
	signature BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS fee_configs (
	block_number INTEGER PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS program_ids (
	batch_number INTEGER PRIMARY KEY,
	program_id BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS account_updates (
	block_number INTEGER PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS operations_counts (
	id INTEGER PRIMARY KEY CHECK (id = 0),
	txs INTEGER NOT NULL,
	privileged_txs INTEGER NOT NULL,
	messages INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

const latestSentBatchProofKey = "latest_sent_batch_proof"

// Engine is a database/sql-backed rollupstore.Engine.
type Engine struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQL rollup store. driverName/dsn are
// passed straight to database/sql.Open, so "sqlite3" with a file path (or
// ":memory:") works out of the box once the caller blank-imports
// github.com/mattn/go-sqlite3.
func Open(driverName, dsn string) (*Engine, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("rollupstore/sql: open: %w", err)
	}
	if driverName == "sqlite3" {
		db.SetMaxOpenConns(1) // sqlite3 serializes writers; avoid SQLITE_BUSY
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("rollupstore/sql: create schema: %w", err)
	}
	return &Engine{db: db}, nil
}

// Close releases the underlying *sql.DB.
func (e *Engine) Close() error { return e.db.Close() }

var _ rollupstore.Engine = (*Engine)(nil)

func (e *Engine) Init(ctx context.Context) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches WHERE number = 0`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		if err := insertBatch(ctx, tx, types.GenesisBatch()); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO meta (key, value) VALUES (?, 0)`, latestSentBatchProofKey); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO operations_counts (id, txs, privileged_txs, messages) VALUES (0, 0, 0, 0)`); err != nil {
		return err
	}
	return tx.Commit()
}

func insertBatch(ctx context.Context, tx *sql.Tx, b *types.BatchRecord) error {
	l2in, err := json.Marshal(b.L2InMessageRollingHashes)
	if err != nil {
		return err
	}
	l1out, err := json.Marshal(b.L1OutMessageHashes)
	if err != nil {
		return err
	}
	diffs, err := json.Marshal(b.BalanceDiffs)
	if err != nil {
		return err
	}
	var bundle []byte
	if b.BlobsBundle != nil {
		bundle, err = json.Marshal(b.BlobsBundle)
		if err != nil {
			return err
		}
	}
	var commitTx, verifyTx []byte
	if b.CommitTx != nil {
		commitTx = b.CommitTx.Bytes()
	}
	if b.VerifyTx != nil {
		verifyTx = b.VerifyTx.Bytes()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (number, first_block, last_block, state_root, l1_in_rolling_hash,
			l2_in_rolling_hashes, l1_out_hashes, non_privileged_tx_count, balance_diffs,
			blobs_bundle, commit_tx, verify_tx)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Number, b.FirstBlock, b.LastBlock, b.StateRoot.Bytes(), b.L1InMessagesRollingHash.Bytes(),
		l2in, l1out, b.NonPrivilegedTransactionsCount, diffs, bundle, commitTx, verifyTx)
	if err != nil {
		return err
	}
	for block := b.FirstBlock; block <= b.LastBlock; block++ {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO block_batch (block_number, batch_number) VALUES (?, ?)`, block, b.Number); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) latestBatchNumber(ctx context.Context, q querier) (uint64, bool, error) {
	var n sql.NullInt64
	err := q.QueryRowContext(ctx, `SELECT MAX(number) FROM batches`).Scan(&n)
	if err != nil {
		return 0, false, err
	}
	if !n.Valid {
		return 0, false, nil
	}
	return uint64(n.Int64), true, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting read helpers run
// either standalone or inside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (e *Engine) sealBatchWithin(ctx context.Context, tx *sql.Tx, batch *types.BatchRecord) error {
	latest, ok, err := e.latestBatchNumber(ctx, tx)
	if err != nil {
		return err
	}
	var prev *types.BatchRecord
	if ok {
		prev, err = e.getBatchWithin(ctx, tx, latest, "")
		if err != nil {
			return err
		}
	}
	if !batch.ContiguousWith(prev) {
		return rollupstore.ErrBatchNotContiguous
	}
	return insertBatch(ctx, tx, batch)
}

func (e *Engine) SealBatch(ctx context.Context, batch *types.BatchRecord) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.sealBatchWithin(ctx, tx, batch); err != nil {
		return err
	}
	return tx.Commit()
}

// SealBatchWithProverInput seals the batch and stores its prover input in a
// single SQL transaction: either both writes land, or neither does.
func (e *Engine) SealBatchWithProverInput(ctx context.Context, batch *types.BatchRecord, input *types.ProverInputData) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.sealBatchWithin(ctx, tx, batch); err != nil {
		return err
	}
	data, err := json.Marshal(input)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO prover_inputs (batch_number, prover_version, data) VALUES (?, ?, ?)`,
		input.BatchNumber, input.ProverVersion, data); err != nil {
		return err
	}
	return tx.Commit()
}

func (e *Engine) getBatchWithin(ctx context.Context, q querier, batchNumber uint64, fork string) (*types.BatchRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT number, first_block, last_block, state_root, l1_in_rolling_hash,
			l2_in_rolling_hashes, l1_out_hashes, non_privileged_tx_count, balance_diffs,
			blobs_bundle, commit_tx, verify_tx
		FROM batches WHERE number = ?`, batchNumber)

	var (
		number, firstBlock, lastBlock, txCount       uint64
		stateRoot, l1InHash                          []byte
		l2in, l1out, diffs, bundle, commitTx, verify []byte
	)
	err := row.Scan(&number, &firstBlock, &lastBlock, &stateRoot, &l1InHash, &l2in, &l1out, &txCount, &diffs, &bundle, &commitTx, &verify)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b := &types.BatchRecord{
		Number:                         number,
		FirstBlock:                     firstBlock,
		LastBlock:                      lastBlock,
		StateRoot:                      common.BytesToHash(stateRoot),
		L1InMessagesRollingHash:        common.BytesToHash(l1InHash),
		NonPrivilegedTransactionsCount: txCount,
	}
	if err := json.Unmarshal(l2in, &b.L2InMessageRollingHashes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(l1out, &b.L1OutMessageHashes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(diffs, &b.BalanceDiffs); err != nil {
		return nil, err
	}
	if bundle != nil {
		if err := json.Unmarshal(bundle, &b.BlobsBundle); err != nil {
			return nil, err
		}
		b.BlobsBundle.Version = types.WrapperVersionForFork(fork)
	}
	if commitTx != nil {
		h := common.BytesToHash(commitTx)
		b.CommitTx = &h
	}
	if verify != nil {
		h := common.BytesToHash(verify)
		b.VerifyTx = &h
	}
	return b, nil
}

func (e *Engine) GetBatch(ctx context.Context, batchNumber uint64, fork string) (*types.BatchRecord, error) {
	return e.getBatchWithin(ctx, e.db, batchNumber, fork)
}

func (e *Engine) ContainsBatch(ctx context.Context, batchNumber uint64) (bool, error) {
	var n int
	err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches WHERE number = ?`, batchNumber).Scan(&n)
	return n > 0, err
}

func (e *Engine) LatestBatchNumber(ctx context.Context) (uint64, bool, error) {
	return e.latestBatchNumber(ctx, e.db)
}

func (e *Engine) BatchNumberByBlock(ctx context.Context, blockNumber uint64) (uint64, bool, error) {
	var n sql.NullInt64
	err := e.db.QueryRowContext(ctx, `SELECT batch_number FROM block_batch WHERE block_number = ?`, blockNumber).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint64(n.Int64), true, nil
}

// RevertToBatch removes batch n+1 and everything after it inside a single
// transaction.
func (e *Engine) RevertToBatch(ctx context.Context, n uint64) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var cutoffBlock sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT last_block FROM batches WHERE number = ?`, n).Scan(&cutoffBlock); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	cutoff := uint64(0)
	if cutoffBlock.Valid {
		cutoff = uint64(cutoffBlock.Int64)
	}

	stmts := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM block_batch WHERE batch_number > ?`, []any{n}},
		{`DELETE FROM batches WHERE number > ?`, []any{n}},
		{`DELETE FROM prover_inputs WHERE batch_number > ?`, []any{n}},
		{`DELETE FROM program_ids WHERE batch_number > ?`, []any{n}},
		{`DELETE FROM fee_configs WHERE block_number > ?`, []any{cutoff}},
		{`DELETE FROM account_updates WHERE block_number > ?`, []any{cutoff}},
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateOperationsCount issues an UPDATE ... SET col = col + ? inside the
// database engine itself, so the increment is never lost to a read-then-
// write race the way a load-into-local-variable-then-store pattern would.
func (e *Engine) UpdateOperationsCount(ctx context.Context, txInc, privilegedTxInc, messagesInc uint64) error {
	_, err := e.db.ExecContext(ctx, `
		UPDATE operations_counts
		SET txs = txs + ?, privileged_txs = privileged_txs + ?, messages = messages + ?
		WHERE id = 0`, txInc, privilegedTxInc, messagesInc)
	return err
}

func (e *Engine) OperationsCount(ctx context.Context) (uint64, uint64, uint64, error) {
	var txs, priv, msgs uint64
	err := e.db.QueryRowContext(ctx, `SELECT txs, privileged_txs, messages FROM operations_counts WHERE id = 0`).Scan(&txs, &priv, &msgs)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, 0, nil
	}
	return txs, priv, msgs, err
}

func (e *Engine) GetProverInput(ctx context.Context, batchNumber uint64, proverVersion string) (*types.ProverInputData, error) {
	var data []byte
	err := e.db.QueryRowContext(ctx, `SELECT data FROM prover_inputs WHERE batch_number = ? AND prover_version = ?`, batchNumber, proverVersion).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var in types.ProverInputData
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

func (e *Engine) StoreBatchProof(ctx context.Context, proof *types.BatchProof) error {
	_, err := e.db.ExecContext(ctx, `INSERT OR REPLACE INTO proofs (batch_number, prover_type, proof) VALUES (?, ?, ?)`,
		proof.Batch, string(proof.Type), proof.Proof)
	return err
}

func (e *Engine) GetBatchProof(ctx context.Context, batchNumber uint64, proverType types.ProverType) (*types.BatchProof, error) {
	ok, err := e.ContainsBatch(ctx, batchNumber)
	if err != nil || !ok {
		return nil, err
	}
	var proof []byte
	err = e.db.QueryRowContext(ctx, `SELECT proof FROM proofs WHERE batch_number = ? AND prover_type = ?`, batchNumber, string(proverType)).Scan(&proof)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &types.BatchProof{Type: proverType, Batch: batchNumber, Proof: proof}, nil
}

func (e *Engine) StoreBatchSignature(ctx context.Context, batchNumber uint64, signature []byte) error {
	_, err := e.db.ExecContext(ctx, `INSERT OR REPLACE INTO signatures (batch_number, signature) VALUES (?, ?)`, batchNumber, signature)
	return err
}

func (e *Engine) GetBatchSignature(ctx context.Context, batchNumber uint64) ([]byte, error) {
	ok, err := e.ContainsBatch(ctx, batchNumber)
	if err != nil || !ok {
		return nil, err
	}
	var sig []byte
	err = e.db.QueryRowContext(ctx, `SELECT signature FROM signatures WHERE batch_number = ?`, batchNumber).Scan(&sig)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sig, err
}

func (e *Engine) StoreFeeConfig(ctx context.Context, blockNumber uint64, fc types.FeeConfig) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return err
	}
	_, err = e.db.ExecContext(ctx, `INSERT OR REPLACE INTO fee_configs (block_number, data) VALUES (?, ?)`, blockNumber, data)
	return err
}

func (e *Engine) GetFeeConfig(ctx context.Context, blockNumber uint64) (*types.FeeConfig, error) {
	var data []byte
	err := e.db.QueryRowContext(ctx, `SELECT data FROM fee_configs WHERE block_number = ?`, blockNumber).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var fc types.FeeConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

func (e *Engine) StoreProgramIDByBatch(ctx context.Context, batchNumber uint64, programID common.Hash) error {
	_, err := e.db.ExecContext(ctx, `INSERT OR REPLACE INTO program_ids (batch_number, program_id) VALUES (?, ?)`, batchNumber, programID.Bytes())
	return err
}

func (e *Engine) GetProgramIDByBatch(ctx context.Context, batchNumber uint64) (*common.Hash, error) {
	var data []byte
	err := e.db.QueryRowContext(ctx, `SELECT program_id FROM program_ids WHERE batch_number = ?`, batchNumber).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h := common.BytesToHash(data)
	return &h, nil
}

func (e *Engine) StoreAccountUpdatesByBlock(ctx context.Context, blockNumber uint64, diffs []types.BalanceDiff) error {
	data, err := json.Marshal(diffs)
	if err != nil {
		return err
	}
	_, err = e.db.ExecContext(ctx, `INSERT OR REPLACE INTO account_updates (block_number, data) VALUES (?, ?)`, blockNumber, data)
	return err
}

func (e *Engine) GetAccountUpdatesByBlock(ctx context.Context, blockNumber uint64) ([]types.BalanceDiff, error) {
	var data []byte
	err := e.db.QueryRowContext(ctx, `SELECT data FROM account_updates WHERE block_number = ?`, blockNumber).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var diffs []types.BalanceDiff
	if err := json.Unmarshal(data, &diffs); err != nil {
		return nil, err
	}
	return diffs, nil
}

func (e *Engine) SetCommitTx(ctx context.Context, batchNumber uint64, txHash common.Hash) error {
	_, err := e.db.ExecContext(ctx, `UPDATE batches SET commit_tx = ? WHERE number = ?`, txHash.Bytes(), batchNumber)
	return err
}

func (e *Engine) GetCommitTx(ctx context.Context, batchNumber uint64) (*common.Hash, error) {
	var data []byte
	err := e.db.QueryRowContext(ctx, `SELECT commit_tx FROM batches WHERE number = ?`, batchNumber).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || data == nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h := common.BytesToHash(data)
	return &h, nil
}

func (e *Engine) SetVerifyTx(ctx context.Context, batchNumber uint64, txHash common.Hash) error {
	_, err := e.db.ExecContext(ctx, `UPDATE batches SET verify_tx = ? WHERE number = ?`, txHash.Bytes(), batchNumber)
	return err
}

func (e *Engine) GetVerifyTx(ctx context.Context, batchNumber uint64) (*common.Hash, error) {
	var data []byte
	err := e.db.QueryRowContext(ctx, `SELECT verify_tx FROM batches WHERE number = ?`, batchNumber).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || data == nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h := common.BytesToHash(data)
	return &h, nil
}

func (e *Engine) LatestSentBatchProof(ctx context.Context) (uint64, error) {
	var v uint64
	err := e.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, latestSentBatchProofKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, rollupstore.ErrNotInitialized
	}
	return v, err
}

func (e *Engine) SetLatestSentBatchProof(ctx context.Context, batchNumber uint64) error {
	_, err := e.db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, latestSentBatchProofKey, batchNumber)
	return err
}
