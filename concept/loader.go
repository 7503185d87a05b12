package concept

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ontoquery/core"
)

// Table file names inside the terminology directory.
const (
	ConceptTable      = "cui.csv"
	RelationTable     = "rel.csv"
	CodeTable         = "snomed.csv"
	SemanticTypeTable = "sty.csv"
)

// narrowerRelation is the only relation kept from rel.csv.
const narrowerRelation = "RN"

// Tables is the parsed terminology directory.
type Tables struct {
	Concepts      []*core.Concept
	Narrower      map[core.ConceptID][]core.ConceptID
	Codes         map[string]core.ConceptID
	SemanticTypes map[string]SemanticType
}

// LoaderOption configures LoadTables and LoadMappingsDir.
type LoaderOption func(*loader) error

type loader struct {
	logger       *slog.Logger
	poolSize     int
	skipConcepts bool
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *loader) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

// WithPoolSize sets how many files load concurrently. Default is 4.
func WithPoolSize(size int) LoaderOption {
	return func(l *loader) error {
		if size < 1 {
			size = 1
		}
		l.poolSize = size
		return nil
	}
}

// WithoutConcepts skips cui.csv. The lazy source reads concept rows from
// its repository instead.
func WithoutConcepts() LoaderOption {
	return func(l *loader) error {
		l.skipConcepts = true
		return nil
	}
}

func newLoader(opts []LoaderOption) (*loader, error) {
	l := &loader{logger: slog.Default(), poolSize: 4}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// run executes every job on an ants pool and joins their errors.
func (l *loader) run(jobs []func() error) error {
	pool, err := ants.NewPool(l.poolSize)
	if err != nil {
		return err
	}
	defer pool.Release()

	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			errs[i] = job()
		}); err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}

// LoadTables reads the pipe-delimited terminology tables in dir.
// cui.csv, rel.csv and snomed.csv are required; sty.csv is optional.
func LoadTables(ctx context.Context, dir string, opts ...LoaderOption) (*Tables, error) {
	if dir == "" {
		return nil, ErrTablesDirRequired
	}
	l, err := newLoader(opts)
	if err != nil {
		return nil, err
	}

	t := &Tables{}
	jobs := []func() error{
		func() (err error) { t.Narrower, err = loadRelations(ctx, filepath.Join(dir, RelationTable)); return },
		func() (err error) { t.Codes, err = loadCodes(ctx, filepath.Join(dir, CodeTable)); return },
		func() (err error) {
			t.SemanticTypes, err = loadSemanticTypes(ctx, filepath.Join(dir, SemanticTypeTable))
			if errors.Is(err, fs.ErrNotExist) {
				l.logger.Debug("semantic type table not found", "path", filepath.Join(dir, SemanticTypeTable))
				t.SemanticTypes, err = map[string]SemanticType{}, nil
			}
			return
		},
	}
	if !l.skipConcepts {
		jobs = append(jobs, func() (err error) {
			t.Concepts, err = loadConcepts(ctx, filepath.Join(dir, ConceptTable))
			return
		})
	}
	if err := l.run(jobs); err != nil {
		return nil, err
	}

	l.logger.Info("loaded terminology tables",
		"dir", dir,
		"concepts", len(t.Concepts),
		"narrower", len(t.Narrower),
		"codes", len(t.Codes),
		"semantic_types", len(t.SemanticTypes))
	return t, nil
}

// eachRow streams the rows of a pipe-delimited file.
func eachRow(ctx context.Context, path string, minFields int, fn func(row []string)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '|'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	line := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		line++
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) < minFields {
			return fmt.Errorf("%w: %s line %d has %d fields, want %d",
				ErrMalformedRow, filepath.Base(path), line, len(row), minFields)
		}
		fn(row)
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// loadConcepts reads cui|tui[,tui]|group[,group]|label rows.
func loadConcepts(ctx context.Context, path string) ([]*core.Concept, error) {
	var concepts []*core.Concept
	err := eachRow(ctx, path, 4, func(row []string) {
		concepts = append(concepts, &core.Concept{
			ID:             core.ConceptID(strings.TrimSpace(row[0])),
			SemanticTypes:  splitList(row[1]),
			SemanticGroups: splitList(row[2]),
			Label:          row[3],
		})
	})
	return concepts, err
}

// loadRelations reads cui1|REL|cui2[,cui2] rows, keeping narrower edges.
// Repeated rows for the same parent accumulate.
func loadRelations(ctx context.Context, path string) (map[core.ConceptID][]core.ConceptID, error) {
	narrower := make(map[core.ConceptID][]core.ConceptID)
	err := eachRow(ctx, path, 3, func(row []string) {
		if strings.TrimSpace(row[1]) != narrowerRelation {
			return
		}
		parent := core.ConceptID(strings.TrimSpace(row[0]))
		for _, child := range splitList(row[2]) {
			narrower[parent] = append(narrower[parent], core.ConceptID(child))
		}
	})
	return narrower, err
}

// loadCodes reads code|cui rows. A repeated code keeps its last mapping.
func loadCodes(ctx context.Context, path string) (map[string]core.ConceptID, error) {
	codes := make(map[string]core.ConceptID)
	err := eachRow(ctx, path, 2, func(row []string) {
		codes[strings.TrimSpace(row[0])] = core.ConceptID(strings.TrimSpace(row[1]))
	})
	return codes, err
}

// loadSemanticTypes reads tui|group|grouplabel rows.
func loadSemanticTypes(ctx context.Context, path string) (map[string]SemanticType, error) {
	types := make(map[string]SemanticType)
	err := eachRow(ctx, path, 3, func(row []string) {
		tui := strings.TrimSpace(row[0])
		types[tui] = SemanticType{TUI: tui, Group: row[1], GroupLabel: row[2]}
	})
	return types, err
}
