// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rollupstore

import (
	"context"

	"github.com/luxfi/log"
)

// Store wraps an Engine with the logging every other package-level
// component in this module does through github.com/luxfi/log, keeping
// backend selection (memory vs sql) out of callers' hands.
type Store struct {
	engine Engine
	log    log.Logger
}

// New wraps engine in a Store. engine is typically a *memory.Engine or a
// *sql.Engine.
func New(engine Engine, logger log.Logger) *Store {
	return &Store{engine: engine, log: logger}
}

// Engine returns the underlying storage backend, for callers (e.g.
// cmd/storemigrate) that need to drive both a source and destination Engine
// directly.
func (s *Store) Engine() Engine { return s.engine }

// Init seals batch 0 if needed and logs the outcome.
func (s *Store) Init(ctx context.Context) error {
	if err := s.engine.Init(ctx); err != nil {
		return err
	}
	if s.log != nil {
		s.log.Debug("rollup store initialized")
	}
	return nil
}
