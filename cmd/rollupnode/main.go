// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// rollupnode runs the sequencer path described in spec.md §4.F and §4.G:
// it opens a rollup store, restores sequencer state from it, and drives
// the block producer, L1 committer, and transaction broadcaster until
// signaled to stop. Concrete EVM-state and L1-RPC backends are the
// external collaborators sequencer.StateRootProvider and
// sequencer.L1Submitter describe; this binary wires the in-process
// reference implementations (core/vm.StateHost, a logging stub) when no
// such backend is configured, the same fallback sequencer/blockproducer.go
// documents for StateHost itself.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	gtypes "github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	_ "github.com/mattn/go-sqlite3"

	"github.com/luxfi/rollup/core/txpool"
	"github.com/luxfi/rollup/core/types"
	"github.com/luxfi/rollup/core/vm"
	"github.com/luxfi/rollup/network/txgossip"
	"github.com/luxfi/rollup/rollupstore"
	"github.com/luxfi/rollup/rollupstore/memory"
	rollupsql "github.com/luxfi/rollup/rollupstore/sql"
	"github.com/luxfi/rollup/sequencer"
)

// flagNames pairs each cli.Flag with the viper key it binds to, so a
// --config file's values become the defaults cli falls back to when a flag
// isn't given on the command line.
var flagNames = []string{
	"store.driver", "store.dsn", "chain-id", "coinbase", "gas-limit", "fork",
	"min-tip-gwei", "mempool.max-size", "block-period", "blocks-per-batch",
	"commit-retry-base-delay", "commit-retry-max-delay",
	"gossip.broadcast-interval", "metrics.namespace",
}

func main() {
	app := &cli.App{
		Name:  "rollupnode",
		Usage: "run the L2 sequencer: block producer, L1 committer, and transaction broadcaster",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "optional TOML/YAML/JSON config file; flags override its values"},
			&cli.StringFlag{Name: "store.driver", Value: "memory", Usage: "rollup store backend: memory or sqlite3"},
			&cli.StringFlag{Name: "store.dsn", Usage: "DSN for the sqlite3 store (ignored for memory)"},
			&cli.Uint64Flag{Name: "chain-id", Value: 1, Usage: "L2 chain id"},
			&cli.StringFlag{Name: "coinbase", Value: "0x0000000000000000000000000000000000000000", Usage: "block producer's coinbase address"},
			&cli.Uint64Flag{Name: "gas-limit", Value: 30_000_000, Usage: "per-block gas limit"},
			&cli.StringFlag{Name: "fork", Value: "cancun", Usage: "active fork name"},
			&cli.Uint64Flag{Name: "min-tip-gwei", Value: 1, Usage: "minimum tip, in gwei, a transaction must pay to be included"},
			&cli.Uint64Flag{Name: "mempool.max-size", Value: 10_000, Usage: "maximum number of pooled transactions"},
			&cli.DurationFlag{Name: "block-period", Value: 2 * time.Second, Usage: "upper bound on idle time between block production attempts"},
			&cli.Uint64Flag{Name: "blocks-per-batch", Value: 32, Usage: "L2 blocks sealed into each L1-committed batch"},
			&cli.DurationFlag{Name: "commit-retry-base-delay", Value: 200 * time.Millisecond, Usage: "base retry delay for L1 commitment submission"},
			&cli.DurationFlag{Name: "commit-retry-max-delay", Value: 30 * time.Second, Usage: "max retry delay for L1 commitment submission"},
			&cli.DurationFlag{Name: "gossip.broadcast-interval", Value: time.Second, Usage: "transaction broadcast tick"},
			&cli.StringFlag{Name: "metrics.namespace", Usage: "enables mempool size/addition/eviction gauges under this namespace; empty disables metrics"},
		},
		Before: loadConfigFile,
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfigFile reads --config (if given) with viper and seeds any flag
// not already set on the command line from it, the same
// config-file-with-flag-override layering viper is built for.
func loadConfigFile(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	for _, name := range flagNames {
		if c.IsSet(name) || !v.IsSet(name) {
			continue
		}
		if err := c.Set(name, v.GetString(name)); err != nil {
			return fmt.Errorf("applying config key %s: %w", name, err)
		}
	}
	return nil
}

func runAction(c *cli.Context) error {
	logger := log.New()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return run(ctx, logger, nodeConfig{
		storeDriver:     c.String("store.driver"),
		storeDSN:        c.String("store.dsn"),
		chainID:         c.Uint64("chain-id"),
		coinbaseHex:     c.String("coinbase"),
		gasLimit:        c.Uint64("gas-limit"),
		fork:            c.String("fork"),
		minTipGwei:      c.Uint64("min-tip-gwei"),
		mempoolMaxSize:  c.Uint64("mempool.max-size"),
		blockPeriod:     c.Duration("block-period"),
		blocksPerBatch:  c.Uint64("blocks-per-batch"),
		commitBaseDelay: c.Duration("commit-retry-base-delay"),
		commitMaxDelay:  c.Duration("commit-retry-max-delay"),
		gossipInterval:  c.Duration("gossip.broadcast-interval"),
		metricsNamespace: c.String("metrics.namespace"),
	})
}

type nodeConfig struct {
	storeDriver      string
	storeDSN         string
	chainID          uint64
	coinbaseHex      string
	gasLimit         uint64
	fork             string
	minTipGwei       uint64
	mempoolMaxSize   uint64
	blockPeriod      time.Duration
	blocksPerBatch   uint64
	commitBaseDelay  time.Duration
	commitMaxDelay   time.Duration
	gossipInterval   time.Duration
	metricsNamespace string
}

func run(ctx context.Context, logger log.Logger, cfg nodeConfig) error {
	engine, err := openEngine(cfg.storeDriver, cfg.storeDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	store := rollupstore.New(engine, logger)
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	mempool := txpool.New(txpool.Config{MaxSize: cfg.mempoolMaxSize}, logger)
	mempool.EnableMetrics(cfg.metricsNamespace)

	chainID := new(uint256.Int).SetUint64(cfg.chainID)
	minTip := new(uint256.Int).Mul(new(uint256.Int).SetUint64(cfg.minTipGwei), new(uint256.Int).SetUint64(1_000_000_000))

	seq := sequencer.New(
		sequencer.Config{
			Coinbase:             common.HexToAddress(cfg.coinbaseHex),
			GasLimit:             cfg.gasLimit,
			ChainID:              chainID,
			Fork:                 cfg.fork,
			MinTip:               minTip,
			BlockPeriod:          cfg.blockPeriod,
			BlocksPerBatch:       cfg.blocksPerBatch,
			CommitRetryBaseDelay: cfg.commitBaseDelay,
			CommitRetryMaxDelay:  cfg.commitMaxDelay,
		},
		logger,
		store,
		mempool,
		newInMemoryStateProvider(chainID, cfg.fork),
		gtypes.LatestSignerForChainID(chainID.ToBig()),
		newLoggingSubmitter(logger),
	)

	if err := seq.RegenerateState(ctx); err != nil {
		return fmt.Errorf("regenerate state: %w", err)
	}

	broadcaster := txgossip.New(
		txgossip.Config{BroadcastInterval: cfg.gossipInterval},
		logger,
		mempool,
		noPeerSource{},
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return seq.Run(ctx) })
	g.Go(func() error { return broadcaster.Run(ctx) })
	return g.Wait()
}

func openEngine(driver, dsn string) (rollupstore.Engine, error) {
	switch driver {
	case "", "memory":
		return memory.New(), nil
	case "sqlite3":
		return rollupsql.Open("sqlite3", dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// noPeerSource reports zero connected peers. Real peer-table wiring (the
// node's libp2p/quic transport) is external to this module per
// network/txgossip.PeerSource's own doc comment; a node run standalone
// simply has nothing to gossip to yet.
type noPeerSource struct{}

func (noPeerSource) Peers(ctx context.Context) ([]txgossip.Peer, error) { return nil, nil }

// inMemoryStateProvider implements sequencer.StateRootProvider over a
// single persistent core/vm.StateHost, the reference backend
// sequencer/blockproducer.go documents as the fallback "when no external
// state backend is wired". It is not a durable or forkable state backend:
// restarts rebuild it empty and rely on RegenerateState only for the
// sequencer's own bookkeeping, not for account balances.
type inMemoryStateProvider struct {
	chainID *uint256.Int
	fork    string
	host    *vm.StateHost
}

func newInMemoryStateProvider(chainID *uint256.Int, fork string) *inMemoryStateProvider {
	return &inMemoryStateProvider{chainID: chainID, fork: fork}
}

func (p *inMemoryStateProvider) StateForBlock(ctx context.Context, block vm.BlockContext) (*vm.StateHost, error) {
	if p.host == nil {
		p.host = vm.NewStateHost(block, vm.TxContext{})
		return p.host, nil
	}
	// Re-seed a fresh host with the same account set so BlockContext
	// reflects the block about to execute, per StateForBlock's contract.
	next := vm.NewStateHost(block, vm.TxContext{})
	for addr, bal := range p.host.Balances() {
		b := bal
		next.SetAccountForTesting(addr, p.host.GetNonce(addr), &b, nil)
		if code := p.host.GetCode(addr); len(code) > 0 {
			next.SetCode(addr, code)
		}
	}
	p.host = next
	return p.host, nil
}

func (p *inMemoryStateProvider) Commit(ctx context.Context, block vm.BlockContext, host *vm.StateHost) (common.Hash, error) {
	p.host = host
	// No trie is wired (spec.md §1 scopes persistent Merkle state out of
	// this module); derive a deterministic placeholder root from the
	// block number so repeated calls for the same block agree.
	return common.BigToHash(new(big.Int).SetUint64(block.BlockNumber)), nil
}

// loggingSubmitter implements sequencer.L1Submitter by logging the
// commitment instead of posting it. Concrete L1 client wiring (RPC
// endpoint, signing key, gas estimation) is explicitly out of this
// module's scope per sequencer.L1Submitter's own doc comment.
type loggingSubmitter struct {
	log log.Logger
}

func newLoggingSubmitter(logger log.Logger) *loggingSubmitter {
	return &loggingSubmitter{log: logger}
}

func (s *loggingSubmitter) SubmitCommitment(ctx context.Context, batch *types.BatchRecord, input *types.ProverInputData) (common.Hash, error) {
	s.log.Info("batch commitment ready, no L1 submitter configured",
		"batch", batch.Number, "firstBlock", batch.FirstBlock, "lastBlock", batch.LastBlock)
	return batch.StateRoot, nil
}
