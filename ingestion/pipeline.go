package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/storage"
)

// DefaultBatchSize is the number of documents written per store call.
const DefaultBatchSize = 500

// Pipeline orchestrates loading annotated documents into a document store.
// Files are parsed concurrently; writes happen from a single goroutine.
type Pipeline struct {
	store     storage.DocumentStore
	pool      *ants.Pool
	batchSize int
	progress  io.Writer
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent parsing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many documents are written per store call.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithProgress writes file progress to w, typically os.Stderr.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store storage.DocumentStore, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	// Default pool size
	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:     store,
		pool:      pool,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Stats summarises an ingestion run.
type Stats struct {
	Files     int
	Documents int
	// Failed lists the files that could not be read or parsed.
	Failed []string
}

// ParseDocuments decodes a document object or an array of document objects.
func ParseDocuments(data []byte) ([]*core.Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidDocument)
	}
	if trimmed[0] != '[' {
		doc, err := core.ParseDocument(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
		return []*core.Document{doc}, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	docs := make([]*core.Document, 0, len(raws))
	for i, raw := range raws {
		doc, err := core.ParseDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %w", ErrInvalidDocument, i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Ingest parses in-memory documents and writes them to the store.
// Any parse error fails the call before anything is written.
func (p *Pipeline) Ingest(ctx context.Context, raws ...[]byte) (int, error) {
	var docs []*core.Document
	for i, raw := range raws {
		parsed, err := ParseDocuments(raw)
		if err != nil {
			return 0, fmt.Errorf("input %d: %w", i, err)
		}
		docs = append(docs, parsed...)
	}
	for start := 0; start < len(docs); start += p.batchSize {
		end := min(start+p.batchSize, len(docs))
		if err := p.store.AddDocuments(ctx, docs[start:end]...); err != nil {
			return start, fmt.Errorf("add documents: %w", err)
		}
	}
	return len(docs), nil
}

// IngestDir ingests every *.json file under dir, in lexical path order.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) (*Stats, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	p.logger.Info("found document files", "dir", dir, "files", len(paths))
	return p.IngestFiles(ctx, paths...)
}

// parsed is the outcome of one file.
type parsed struct {
	path string
	docs []*core.Document
	err  error
}

// IngestFiles parses files concurrently and writes their documents in batches.
// Unreadable or malformed files are logged and reported in Stats.Failed.
// A store error stops the run and is returned with the stats so far.
func (p *Pipeline) IngestFiles(ctx context.Context, paths ...string) (*Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress := NewProgress(p.progress, len(paths), 100)
	results := make(chan parsed, p.batchSize)

	// Submit for concurrent parsing
	go func() {
		var wg sync.WaitGroup
		send := func(r parsed) {
			select {
			case results <- r:
			case <-ctx.Done():
			}
		}
		for _, path := range paths {
			if ctx.Err() != nil {
				break
			}
			wg.Add(1)
			err := p.pool.Submit(func() {
				defer wg.Done()
				send(parseFile(path))
			})
			if err != nil {
				wg.Done()
				send(parsed{path: path, err: err})
			}
		}
		wg.Wait()
		close(results)
	}()

	stats := &Stats{}
	batch := make([]*core.Document, 0, p.batchSize)
	var storeErr error
	flush := func() {
		if len(batch) == 0 || storeErr != nil {
			return
		}
		if err := p.store.AddDocuments(ctx, batch...); err != nil {
			storeErr = fmt.Errorf("add documents: %w", err)
			p.logger.Error("error writing documents", "count", len(batch), "err", err)
			cancel()
			return
		}
		stats.Documents += len(batch)
		batch = batch[:0]
	}

	for r := range results {
		if storeErr != nil {
			continue // drain
		}
		stats.Files++
		progress.Done(1)
		if r.err != nil {
			p.logger.Warn("skipping document file", "path", r.path, "err", r.err)
			stats.Failed = append(stats.Failed, r.path)
			continue
		}
		batch = append(batch, r.docs...)
		if len(batch) >= p.batchSize {
			flush()
		}
	}
	flush()
	progress.Finish()

	if storeErr != nil {
		return stats, storeErr
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	p.logger.Info("ingestion complete",
		"files", stats.Files, "documents", stats.Documents, "failed", len(stats.Failed))
	return stats, nil
}

func parseFile(path string) parsed {
	data, err := os.ReadFile(path)
	if err != nil {
		return parsed{path: path, err: err}
	}
	docs, err := ParseDocuments(data)
	return parsed{path: path, docs: docs, err: err}
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
