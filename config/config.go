package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the engine settings.
type Config struct {
	// ConceptDir is the directory holding the terminology tables
	// (cui.csv, rel.csv, snomed.csv and optionally sty.csv).
	ConceptDir string `yaml:"concept_dir"`

	// MappingDir is the directory of phenotype mapping files, one *.json
	// file per mapping. Empty means no mappings.
	MappingDir string `yaml:"mapping_dir"`

	// DocumentDB is the SQLite file holding the annotated corpus.
	DocumentDB string `yaml:"document_db"`

	// SnapshotDir is the badger directory holding transaction snapshots and,
	// with LazyConcepts, concept rows.
	SnapshotDir string `yaml:"snapshot_dir"`

	// InMemory keeps both stores in memory. DocumentDB and SnapshotDir are
	// ignored. Intended for tests and one-off runs.
	InMemory bool `yaml:"in_memory"`

	// LazyConcepts reads concept rows from the snapshot store on demand
	// instead of holding the concept table in memory.
	// Default: false
	LazyConcepts bool `yaml:"lazy_concepts"`

	// DefaultDepth is the closure depth used by terms that give none.
	// Default: 0
	DefaultDepth int `yaml:"default_depth"`

	// PoolSize is the number of workers used for table loading and ingestion.
	// Default: 4
	PoolSize int `yaml:"pool_size"`
}

// Option is a functional option for configuring a Config.
type Option func(*Config)

// WithConceptDir sets the terminology table directory.
func WithConceptDir(dir string) Option {
	return func(c *Config) {
		c.ConceptDir = dir
	}
}

// WithMappingDir sets the phenotype mapping directory.
func WithMappingDir(dir string) Option {
	return func(c *Config) {
		c.MappingDir = dir
	}
}

// WithDocumentDB sets the document database path.
func WithDocumentDB(path string) Option {
	return func(c *Config) {
		c.DocumentDB = path
	}
}

// WithSnapshotDir sets the snapshot store directory.
func WithSnapshotDir(dir string) Option {
	return func(c *Config) {
		c.SnapshotDir = dir
	}
}

// WithInMemory keeps both stores in memory.
func WithInMemory(inMemory bool) Option {
	return func(c *Config) {
		c.InMemory = inMemory
	}
}

// WithLazyConcepts switches to the store-backed concept source.
func WithLazyConcepts(lazy bool) Option {
	return func(c *Config) {
		c.LazyConcepts = lazy
	}
}

// WithDefaultDepth sets the default closure depth.
func WithDefaultDepth(depth int) Option {
	return func(c *Config) {
		c.DefaultDepth = depth
	}
}

// WithPoolSize sets the worker pool size.
func WithPoolSize(size int) Option {
	return func(c *Config) {
		c.PoolSize = size
	}
}

// Default returns a Config with the default values.
// The directories and database paths have no default.
func Default() *Config {
	return &Config{
		DefaultDepth: 0,
		PoolSize:     4,
	}
}

// New creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := config.New(
//	    config.WithConceptDir("/data/umls"),
//	    config.WithInMemory(true),
//	)
func New(opts ...Option) *Config {
	cfg := Default()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Load reads a YAML settings file over the defaults, then applies opts.
// Relative paths in the file are resolved against the file's directory.
func Load(path string, opts ...Option) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for _, p := range []*string{&cfg.ConceptDir, &cfg.MappingDir, &cfg.DocumentDB, &cfg.SnapshotDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg, nil
}

// Normalize ensures the configuration is in a canonical form.
func (c *Config) Normalize() {
	for _, p := range []*string{&c.ConceptDir, &c.MappingDir, &c.DocumentDB, &c.SnapshotDir} {
		if *p != "" {
			*p = filepath.Clean(*p)
		}
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.ConceptDir == "" {
		return errors.New("config: ConceptDir is required")
	}
	if !c.InMemory {
		if c.DocumentDB == "" {
			return errors.New("config: DocumentDB is required unless InMemory is set")
		}
		if c.SnapshotDir == "" {
			return errors.New("config: SnapshotDir is required unless InMemory is set")
		}
	}
	if c.DefaultDepth < 0 {
		return errors.New("config: DefaultDepth cannot be negative")
	}
	if c.PoolSize < 1 {
		return errors.New("config: PoolSize must be at least 1")
	}
	return nil
}
