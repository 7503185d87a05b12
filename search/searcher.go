package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/ontoquery/compiler"
	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/expand"
	"github.com/poiesic/ontoquery/storage"
)

// Recorder persists the identifiers of a finished query under a new handle.
// transaction.Tracker is the production implementation.
type Recorder interface {
	Record(ctx context.Context, p *core.Projection) (*core.Snapshot, error)
}

// Result is the outcome of a completed query.
type Result struct {
	Query      core.Query
	Expansions []expand.Expansion
	Compiled   *compiler.CompiledQuery
	Projection *core.Projection
	Snapshot   *core.Snapshot
	Cursor     *Cursor
}

// Handle returns the transaction handle issued for the query.
func (r *Result) Handle() string {
	return r.Snapshot.Handle
}

// Searcher runs structured queries against the annotated corpus.
type Searcher struct {
	expander *expand.Expander
	compiler *compiler.Compiler
	store    storage.DocumentStore
	recorder Recorder
	monitor  QueryMonitor
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMonitor sets the monitor used by Search.
// SearchWithMonitor overrides it per call.
func WithMonitor(monitor QueryMonitor) Option {
	return func(s *Searcher) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	expander *expand.Expander,
	comp *compiler.Compiler,
	store storage.DocumentStore,
	recorder Recorder,
	opts ...Option,
) (*Searcher, error) {
	if expander == nil {
		return nil, ErrExpanderRequired
	}
	if comp == nil {
		return nil, ErrCompilerRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if recorder == nil {
		return nil, ErrRecorderRequired
	}

	s := &Searcher{
		expander: expander,
		compiler: comp,
		store:    store,
		recorder: recorder,
		monitor:  &noopMonitor{},
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search runs a query unpaginated and records its result under a new
// transaction handle. The returned Cursor reads pages of the same query.
func (s *Searcher) Search(ctx context.Context, query core.Query) (*Result, error) {
	return s.SearchWithMonitor(ctx, query, s.monitor)
}

// SearchWithMonitor runs a query like Search, reporting every stage to monitor.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query core.Query, monitor QueryMonitor) (*Result, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)
	mark := time.Now()
	reached := func(stage core.Stage) {
		now := time.Now()
		monitor.Reached(stage, now.Sub(mark))
		mark = now
	}
	fail := func(stage core.Stage, err error) error {
		monitor.Failed(stage, err)
		return err
	}
	reached(core.StageReceived)

	// 1. Expand every term through the concept hierarchy
	expansions, err := s.expander.ExpandAll(ctx, query.Terms)
	if err != nil {
		s.logger.Error("error expanding query terms", "terms", len(query.Terms), "err", err)
		return nil, fail(core.StageExpanded, err)
	}
	monitor.AfterExpansion(expansions)
	reached(core.StageExpanded)

	// 2. Compile terms and filter into one conjunctive predicate
	compiled, err := s.compiler.Compile(expansions, query.Filter, query.ReturnFields)
	if err != nil {
		s.logger.Warn("error compiling query", "err", err)
		return nil, fail(core.StageCompiled, err)
	}
	monitor.AfterCompile(compiled)
	reached(core.StageCompiled)
	s.logger.Debug("compiled query", "query", compiler.Describe(compiled))

	// 3. Execute unpaginated
	rows, err := s.store.Execute(ctx, compiled, nil)
	if err != nil {
		s.logger.Error("error executing query", "err", err)
		return nil, fail(core.StageExecuted, fmt.Errorf("execute query: %w", err))
	}
	reached(core.StageExecuted)

	// 4. Shape rows
	projection := Project(compiled.Fields, rows)
	reached(core.StageProjected)

	// 5. Record the transaction
	snapshot, err := s.recorder.Record(ctx, projection)
	if err != nil {
		s.logger.Error("error recording transaction", "rows", projection.Len(), "err", err)
		return nil, fail(core.StagePersisted, err)
	}
	reached(core.StagePersisted)

	result := &Result{
		Query:      query,
		Expansions: expansions,
		Compiled:   compiled,
		Projection: projection,
		Snapshot:   snapshot,
		Cursor: &Cursor{
			store:  s.store,
			query:  compiled,
			total:  projection.Len(),
			handle: snapshot.Handle,
		},
	}
	s.logger.Info("query complete", "handle", snapshot.Handle, "rows", projection.Len())
	monitor.Finish(result)

	return result, nil
}
