// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// storemigrate copies every sealed batch and its associated records from
// one rollup store to another. It is this rollup's equivalent of the
// node's libmdbx2rocksdb tool, renamed since the rollup store here is a
// database/sql-backed KV/relational store rather than mdbx/rocksdb
// specifically (spec.md §6).
package main

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/spf13/pflag"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/rollupstore"
	rollupsql "github.com/luxfi/rollup/rollupstore/sql"
)

// report is one JSONL record, emitted to stdout (and --report-file, if set)
// when --json is passed. Field names and schema_version are fixed by
// spec.md §6.
type report struct {
	SchemaVersion       int    `json:"schema_version"`
	Status              string `json:"status"`
	Phase               string `json:"phase"`
	ErrorType           string `json:"error_type,omitempty"`
	ErrorClassification string `json:"error_classification,omitempty"`
	Retryable           bool   `json:"retryable"`
	RetryAttempts       int    `json:"retry_attempts"`
	RetryAttemptsUsed   int    `json:"retry_attempts_used"`
	Error               string `json:"error,omitempty"`
	ElapsedMs           int64  `json:"elapsed_ms"`
}

type genesisFile struct {
	StateRoot common.Hash `json:"state_root"`
}

func main() {
	var (
		genesisPath    = pflag.String("genesis", "", "path to the genesis file to validate the old store against")
		oldStorePath   = pflag.String("store.old", "", "DSN of the store to migrate from")
		newStorePath   = pflag.String("store.new", "", "DSN of the store to migrate to")
		dryRun         = pflag.Bool("dry-run", false, "validate and report without writing to store.new")
		jsonOut        = pflag.Bool("json", false, "emit a JSONL status record")
		reportFile     = pflag.String("report-file", "", "append the JSONL record to this file as well as stdout")
		retryAttempts  = pflag.Int("retry-attempts", 5, "max retry attempts for transient store errors")
		retryBaseDelay = pflag.Int("retry-base-delay-ms", 100, "base retry delay in milliseconds")
	)
	pflag.Parse()

	logger := log.New()
	start := time.Now()

	attemptsUsed, phase, classifiedErr := run(context.Background(), logger, runConfig{
		genesisPath:    *genesisPath,
		oldStorePath:   *oldStorePath,
		newStorePath:   *newStorePath,
		dryRun:         *dryRun,
		retryAttempts:  *retryAttempts,
		retryBaseDelay: time.Duration(*retryBaseDelay) * time.Millisecond,
	})

	rec := report{
		SchemaVersion:     1,
		Phase:             phase,
		RetryAttempts:     *retryAttempts,
		RetryAttemptsUsed: attemptsUsed,
		ElapsedMs:         time.Since(start).Milliseconds(),
	}
	if classifiedErr == nil {
		rec.Status = "ok"
	} else {
		rec.Status = "failed"
		rec.Error = classifiedErr.err.Error()
		rec.ErrorType = classifiedErr.errType
		rec.ErrorClassification = classifiedErr.classification
		rec.Retryable = classifiedErr.classification == "transient"
	}

	if *jsonOut {
		if err := emitReport(rec, *reportFile); err != nil {
			fmt.Fprintf(os.Stderr, "storemigrate: writing report: %v\n", err)
		}
	}

	if classifiedErr != nil {
		fmt.Fprintf(os.Stderr, "storemigrate: %s: %v\n", phase, classifiedErr.err)
		os.Exit(1)
	}
	fmt.Println("storemigrate: migration complete")
}

func emitReport(rec report, reportFile string) error {
	enc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	enc = append(enc, '\n')
	fmt.Print(string(enc))

	if reportFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(reportFile), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	f, err := os.OpenFile(reportFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(enc)
	return err
}

// classifiedError pairs an error with the taxonomy the JSONL report needs:
// a Go-ish type name and whether it is worth retrying.
type classifiedError struct {
	err            error
	errType        string
	classification string // "transient" or "permanent"
}

func classify(errType string, transient bool, err error) *classifiedError {
	if err == nil {
		return nil
	}
	classification := "permanent"
	if transient {
		classification = "transient"
	}
	return &classifiedError{err: err, errType: errType, classification: classification}
}

type runConfig struct {
	genesisPath    string
	oldStorePath   string
	newStorePath   string
	dryRun         bool
	retryAttempts  int
	retryBaseDelay time.Duration
}

// run drives the full migration and returns the phase it reached plus a
// classified error, if any. It never panics: every failure mode is
// translated into a phase name and classifiedError so main can always emit
// a well-formed report.
func run(ctx context.Context, logger log.Logger, cfg runConfig) (attemptsUsed int, phase string, cerr *classifiedError) {
	if cfg.oldStorePath == "" || cfg.newStorePath == "" {
		return 0, "parse_flags", classify("ErrMissingFlag", false, errors.New("--store.old and --store.new are required"))
	}

	oldEngine, err := rollupsql.Open("sqlite3", cfg.oldStorePath)
	if err != nil {
		return 0, "open_old_store", classify("ErrOpenStore", false, err)
	}
	defer oldEngine.Close()

	if cfg.genesisPath != "" {
		if err := verifyGenesis(ctx, oldEngine, cfg.genesisPath); err != nil {
			return 0, "verify_genesis", classify("ErrGenesisMismatch", false, err)
		}
	}

	if cfg.dryRun {
		logger.Info("dry run: skipping store.new writes")
		return 0, "done", nil
	}

	newEngine, err := rollupsql.Open("sqlite3", cfg.newStorePath)
	if err != nil {
		return 0, "open_new_store", classify("ErrOpenStore", false, err)
	}
	defer newEngine.Close()

	attempts, err := migrateWithRetry(ctx, logger, oldEngine, newEngine, cfg.retryAttempts, cfg.retryBaseDelay)
	if err != nil {
		return attempts, "migrate", classify("ErrMigrate", isTransient(err), err)
	}

	if err := verifyCounts(ctx, oldEngine, newEngine); err != nil {
		return attempts, "verify", classify("ErrVerifyMismatch", false, err)
	}

	return attempts, "done", nil
}

func verifyGenesis(ctx context.Context, engine rollupstore.Engine, genesisPath string) error {
	raw, err := os.ReadFile(genesisPath)
	if err != nil {
		return fmt.Errorf("reading genesis file: %w", err)
	}
	var gen genesisFile
	if err := json.Unmarshal(raw, &gen); err != nil {
		return fmt.Errorf("parsing genesis file: %w", err)
	}

	batch, err := engine.GetBatch(ctx, 0, "")
	if err != nil {
		return fmt.Errorf("reading batch 0: %w", err)
	}
	if batch == nil {
		return errors.New("store.old has no sealed batch 0")
	}
	if batch.StateRoot != gen.StateRoot {
		return fmt.Errorf("batch 0 state root %s does not match genesis state root %s", batch.StateRoot, gen.StateRoot)
	}
	return nil
}

// migrateWithRetry copies every batch 0..latest, plus its prover input,
// proof, signature, commit/verify tx, and per-block fee configs/account
// updates, retrying the whole copy with exponential backoff on transient
// store errors up to maxAttempts.
func migrateWithRetry(ctx context.Context, logger log.Logger, oldEngine, newEngine rollupstore.Engine, maxAttempts int, baseDelay time.Duration) (int, error) {
	eb := backoff.NewExponentialBackOff()
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	eb.InitialInterval = baseDelay
	eb.MaxElapsedTime = 0

	attempts := 0
	bounded := backoff.WithMaxRetries(eb, uint64(maxAttempts))
	err := backoff.RetryNotify(
		func() error {
			attempts++
			err := migrateOnce(ctx, oldEngine, newEngine)
			if err != nil && !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(bounded, ctx),
		func(err error, delay time.Duration) {
			logger.Warn("batch copy failed, retrying", "delay", delay, "err", err)
		},
	)
	return attempts, err
}

func migrateOnce(ctx context.Context, oldEngine, newEngine rollupstore.Engine) error {
	if err := newEngine.Init(ctx); err != nil {
		return fmt.Errorf("initializing store.new: %w", err)
	}

	latest, ok, err := oldEngine.LatestBatchNumber(ctx)
	if err != nil {
		return fmt.Errorf("reading latest batch number: %w", err)
	}
	if !ok {
		return nil
	}

	for n := uint64(0); n <= latest; n++ {
		if err := migrateBatch(ctx, oldEngine, newEngine, n); err != nil {
			return fmt.Errorf("migrating batch %d: %w", n, err)
		}
	}

	txs, privileged, messages, err := oldEngine.OperationsCount(ctx)
	if err != nil {
		return fmt.Errorf("reading operations count: %w", err)
	}
	if err := newEngine.UpdateOperationsCount(ctx, txs, privileged, messages); err != nil {
		return fmt.Errorf("writing operations count: %w", err)
	}

	latestSent, err := oldEngine.LatestSentBatchProof(ctx)
	if err != nil {
		return fmt.Errorf("reading latest sent batch proof: %w", err)
	}
	if err := newEngine.SetLatestSentBatchProof(ctx, latestSent); err != nil {
		return fmt.Errorf("writing latest sent batch proof: %w", err)
	}
	return nil
}

func migrateBatch(ctx context.Context, oldEngine, newEngine rollupstore.Engine, n uint64) error {
	batch, err := oldEngine.GetBatch(ctx, n, "")
	if err != nil {
		return fmt.Errorf("reading batch: %w", err)
	}
	if batch == nil {
		return nil
	}

	input, err := oldEngine.GetProverInput(ctx, n, "v1")
	if err != nil {
		return fmt.Errorf("reading prover input: %w", err)
	}
	if input != nil {
		if err := newEngine.SealBatchWithProverInput(ctx, batch, input); err != nil {
			return fmt.Errorf("sealing batch with prover input: %w", err)
		}
	} else if err := newEngine.SealBatch(ctx, batch); err != nil {
		return fmt.Errorf("sealing batch: %w", err)
	}

	for _, proverType := range []types.ProverType{"sp1", "risc0", "zisk", "openvm"} {
		proof, err := oldEngine.GetBatchProof(ctx, n, proverType)
		if err != nil {
			return fmt.Errorf("reading batch proof: %w", err)
		}
		if proof != nil {
			if err := newEngine.StoreBatchProof(ctx, proof); err != nil {
				return fmt.Errorf("storing batch proof: %w", err)
			}
		}
	}

	sig, err := oldEngine.GetBatchSignature(ctx, n)
	if err != nil {
		return fmt.Errorf("reading batch signature: %w", err)
	}
	if sig != nil {
		if err := newEngine.StoreBatchSignature(ctx, n, sig); err != nil {
			return fmt.Errorf("storing batch signature: %w", err)
		}
	}

	if batch.CommitTx != nil {
		if err := newEngine.SetCommitTx(ctx, n, *batch.CommitTx); err != nil {
			return fmt.Errorf("storing commit tx: %w", err)
		}
	}
	if batch.VerifyTx != nil {
		if err := newEngine.SetVerifyTx(ctx, n, *batch.VerifyTx); err != nil {
			return fmt.Errorf("storing verify tx: %w", err)
		}
	}

	for blockNumber := batch.FirstBlock; blockNumber <= batch.LastBlock; blockNumber++ {
		fc, err := oldEngine.GetFeeConfig(ctx, blockNumber)
		if err != nil {
			return fmt.Errorf("reading fee config for block %d: %w", blockNumber, err)
		}
		if fc != nil {
			if err := newEngine.StoreFeeConfig(ctx, blockNumber, *fc); err != nil {
				return fmt.Errorf("storing fee config for block %d: %w", blockNumber, err)
			}
		}

		diffs, err := oldEngine.GetAccountUpdatesByBlock(ctx, blockNumber)
		if err != nil {
			return fmt.Errorf("reading account updates for block %d: %w", blockNumber, err)
		}
		if len(diffs) > 0 {
			if err := newEngine.StoreAccountUpdatesByBlock(ctx, blockNumber, diffs); err != nil {
				return fmt.Errorf("storing account updates for block %d: %w", blockNumber, err)
			}
		}
	}

	programID, err := oldEngine.GetProgramIDByBatch(ctx, n)
	if err != nil {
		return fmt.Errorf("reading program id: %w", err)
	}
	if programID != nil {
		if err := newEngine.StoreProgramIDByBatch(ctx, n, *programID); err != nil {
			return fmt.Errorf("storing program id: %w", err)
		}
	}

	return nil
}

func verifyCounts(ctx context.Context, oldEngine, newEngine rollupstore.Engine) error {
	oldLatest, oldOK, err := oldEngine.LatestBatchNumber(ctx)
	if err != nil {
		return fmt.Errorf("reading store.old latest batch: %w", err)
	}
	newLatest, newOK, err := newEngine.LatestBatchNumber(ctx)
	if err != nil {
		return fmt.Errorf("reading store.new latest batch: %w", err)
	}
	if oldOK != newOK || oldLatest != newLatest {
		return fmt.Errorf("latest batch mismatch: store.old=%d (ok=%v) store.new=%d (ok=%v)", oldLatest, oldOK, newLatest, newOK)
	}
	return nil
}

// isTransient classifies database/sql-layer errors (connection drops,
// busy/locked, timeouts) as retryable; anything else (contiguity
// violations, malformed records) is a permanent migration defect.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var se sqlite3.Error
	return errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked)
}
