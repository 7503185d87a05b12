// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ontoquery wires the concept hierarchy, query compiler, document
// store and transaction tracker into a single Engine.
package ontoquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/poiesic/ontoquery/compiler"
	"github.com/poiesic/ontoquery/concept"
	"github.com/poiesic/ontoquery/config"
	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/expand"
	"github.com/poiesic/ontoquery/ingestion"
	"github.com/poiesic/ontoquery/search"
	"github.com/poiesic/ontoquery/storage"
	"github.com/poiesic/ontoquery/storage/badger"
	"github.com/poiesic/ontoquery/storage/sqlite"
	"github.com/poiesic/ontoquery/transaction"
)

// Engine answers structured queries over an annotated corpus.
type Engine struct {
	cfg         *config.Config
	backend     *badger.Backend
	conceptRepo storage.ConceptRepository
	snapshots   storage.SnapshotRepository
	documents   *sqlite.Store
	source      concept.Source
	mappings    *concept.Mappings
	expander    *expand.Expander
	tracker     *transaction.Tracker
	searcher    *search.Searcher
	logger      *slog.Logger
	closed      bool
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger  *slog.Logger
	monitor search.QueryMonitor
	filter  expand.Filter
	now     func() time.Time
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithMonitor sets the query monitor, for example a search.PrometheusMonitor.
func WithMonitor(monitor search.QueryMonitor) Option {
	return func(o *engineOptions) {
		o.monitor = monitor
	}
}

// WithFilter sets the corpus-presence filter applied to expanded concepts.
func WithFilter(filter expand.Filter) Option {
	return func(o *engineOptions) {
		o.filter = filter
	}
}

// WithClock sets the clock used for open date ranges and snapshot times.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		o.now = now
	}
}

// Open validates cfg, opens both stores, loads the terminology and builds
// the query pipeline.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Apply options
	options := &engineOptions{
		logger: slog.Default(),
		filter: expand.PassThrough,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	e := &Engine{cfg: cfg, logger: options.logger}
	if err := e.openStores(); err != nil {
		e.Close()
		return nil, err
	}
	if err := e.loadTerminology(ctx); err != nil {
		e.Close()
		return nil, err
	}
	if err := e.buildPipeline(options); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) openStores() error {
	var err error
	e.backend, err = badger.OpenBackend(e.cfg.SnapshotDir, e.cfg.InMemory, badger.WithLogger(e.logger))
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	if e.conceptRepo, err = badger.NewConceptRepository(e.backend); err != nil {
		return err
	}
	if e.snapshots, err = badger.NewSnapshotRepository(e.backend); err != nil {
		return err
	}

	if e.cfg.InMemory {
		e.documents, err = sqlite.OpenMemory(sqlite.WithLogger(e.logger))
	} else {
		e.documents, err = sqlite.Open(e.cfg.DocumentDB, sqlite.WithLogger(e.logger))
	}
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	return nil
}

func (e *Engine) loadTerminology(ctx context.Context) error {
	baseOpts := []concept.LoaderOption{
		concept.WithLogger(e.logger),
		concept.WithPoolSize(e.cfg.PoolSize),
	}
	loaderOpts := baseOpts

	if e.cfg.LazyConcepts {
		stored, err := e.conceptRepo.CountConcepts(ctx)
		if err != nil {
			return err
		}
		if stored > 0 {
			loaderOpts = append(loaderOpts[:len(loaderOpts):len(loaderOpts)], concept.WithoutConcepts())
		}
		tables, err := concept.LoadTables(ctx, e.cfg.ConceptDir, loaderOpts...)
		if err != nil {
			return err
		}
		if stored == 0 {
			if _, err := concept.Import(ctx, e.conceptRepo, tables, e.logger); err != nil {
				return err
			}
			tables.Concepts = nil
		}
		if e.source, err = concept.NewLazySource(e.conceptRepo, tables); err != nil {
			return err
		}
	} else {
		tables, err := concept.LoadTables(ctx, e.cfg.ConceptDir, loaderOpts...)
		if err != nil {
			return err
		}
		graph, err := concept.NewGraph(tables)
		if err != nil {
			return err
		}
		stats := graph.Stats()
		e.logger.Info("loaded concept graph",
			"concepts", stats.Concepts, "edges", stats.Edges, "codes", stats.Codes)
		e.source = graph
	}

	if e.cfg.MappingDir == "" {
		e.mappings = concept.NewMappings(nil)
		return nil
	}
	var err error
	e.mappings, err = concept.LoadMappingsDir(ctx, e.cfg.MappingDir, baseOpts...)
	return err
}

func (e *Engine) buildPipeline(options *engineOptions) error {
	var err error
	e.expander, err = expand.NewExpander(e.source,
		expand.WithMappings(e.mappings),
		expand.WithFilter(options.filter),
		expand.WithLogger(e.logger))
	if err != nil {
		return err
	}
	comp, err := compiler.New(compiler.WithClock(options.now), compiler.WithLogger(e.logger))
	if err != nil {
		return err
	}
	e.tracker, err = transaction.NewTracker(e.snapshots,
		transaction.WithLogger(e.logger),
		transaction.WithClock(options.now))
	if err != nil {
		return err
	}
	e.searcher, err = search.NewSearcher(e.expander, comp, e.documents, e.tracker,
		search.WithLogger(e.logger),
		search.WithMonitor(options.monitor))
	return err
}

// Close releases both stores. Calling Close again is a no-op.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	var errs []error
	if e.documents != nil {
		if err := e.documents.Close(); err != nil {
			e.logger.Error("error closing document store", "err", err)
			errs = append(errs, err)
		}
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Query runs a structured query and records its result.
func (e *Engine) Query(ctx context.Context, q core.Query) (*search.Result, error) {
	return e.searcher.Search(ctx, q)
}

// QueryJSON decodes and validates a JSON query request, then runs it.
// Terms without qdepth use the configured default depth.
func (e *Engine) QueryJSON(ctx context.Context, data []byte) (*search.Result, error) {
	req, err := core.ParseRequest(data)
	if err != nil {
		return nil, err
	}
	return e.Query(ctx, req.Query(e.cfg.DefaultDepth))
}

// Classify returns the kind of a single query token.
func (e *Engine) Classify(token string) expand.Kind {
	return e.expander.Classify(token)
}

// Expand expands a single term without running a query.
func (e *Engine) Expand(ctx context.Context, term core.QueryTerm) (expand.Expansion, error) {
	return e.expander.Expand(ctx, term)
}

// Transaction returns the snapshot behind a handle.
func (e *Engine) Transaction(ctx context.Context, handle string) (*core.Snapshot, error) {
	return e.tracker.Load(ctx, handle)
}

// Sample draws a training sample from a transaction.
func (e *Engine) Sample(ctx context.Context, handle string, rng *rand.Rand) ([]string, error) {
	return e.tracker.Sample(ctx, handle, rng)
}

// Purge deletes a transaction.
func (e *Engine) Purge(ctx context.Context, handle string) error {
	return e.tracker.Purge(ctx, handle)
}

// Transactions lists every recorded handle.
func (e *Engine) Transactions(ctx context.Context) ([]string, error) {
	return e.tracker.List(ctx)
}

// ImportConcepts reloads the concept table into the concept store used by
// the lazy source.
func (e *Engine) ImportConcepts(ctx context.Context) (int, error) {
	tables, err := concept.LoadTables(ctx, e.cfg.ConceptDir,
		concept.WithLogger(e.logger), concept.WithPoolSize(e.cfg.PoolSize))
	if err != nil {
		return 0, err
	}
	return concept.Import(ctx, e.conceptRepo, tables, e.logger)
}

// NewIngestionPipeline creates a pipeline writing into the document store.
// The caller must Release it.
func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	defaults := []ingestion.Option{
		ingestion.WithPoolSize(e.cfg.PoolSize),
		ingestion.WithLogger(e.logger),
	}
	return ingestion.NewPipeline(e.documents, append(defaults, opts...)...)
}

// Config returns the validated configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Source returns the concept source.
func (e *Engine) Source() concept.Source {
	return e.source
}

// Mappings returns the loaded phenotype mappings.
func (e *Engine) Mappings() *concept.Mappings {
	return e.mappings
}

// Documents returns the document store.
func (e *Engine) Documents() storage.DocumentStore {
	return e.documents
}
