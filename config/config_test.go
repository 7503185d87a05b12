package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, 0, cfg.DefaultDepth)
	assert.Equal(t, 4, cfg.PoolSize)
	assert.False(t, cfg.LazyConcepts)
	assert.False(t, cfg.InMemory)
	assert.Empty(t, cfg.ConceptDir)
}

func TestNew(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		assert.Equal(t, Default(), New())
	})

	t.Run("with every option", func(t *testing.T) {
		cfg := New(
			WithConceptDir("/data/umls"),
			WithMappingDir("/data/phenotypes"),
			WithDocumentDB("/data/docs.db"),
			WithSnapshotDir("/data/txn"),
			WithInMemory(true),
			WithLazyConcepts(true),
			WithDefaultDepth(3),
			WithPoolSize(8),
		)

		assert.Equal(t, &Config{
			ConceptDir:   "/data/umls",
			MappingDir:   "/data/phenotypes",
			DocumentDB:   "/data/docs.db",
			SnapshotDir:  "/data/txn",
			InMemory:     true,
			LazyConcepts: true,
			DefaultDepth: 3,
			PoolSize:     8,
		}, cfg)
	})

	t.Run("later options win", func(t *testing.T) {
		cfg := New(WithDefaultDepth(1), WithDefaultDepth(2))
		assert.Equal(t, 2, cfg.DefaultDepth)
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "ontoquery.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "umls"), cfg.ConceptDir)
	assert.Equal(t, "/srv/phenotypes", cfg.MappingDir, "absolute paths are kept")
	assert.Equal(t, filepath.Join("testdata", "data", "documents.db"), cfg.DocumentDB)
	assert.Equal(t, filepath.Join("testdata", "data", "transactions"), cfg.SnapshotDir)
	assert.Equal(t, 2, cfg.DefaultDepth)
	assert.True(t, cfg.LazyConcepts)
	assert.Equal(t, 4, cfg.PoolSize, "unset keys keep defaults")
	assert.NoError(t, cfg.Validate())

	cfg, err = Load(path, WithDefaultDepth(0), WithPoolSize(1))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.DefaultDepth, "options override the file")
	assert.Equal(t, 1, cfg.PoolSize)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(filepath.Join("testdata", "broken.yaml"))
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	cfg := New(WithConceptDir("/data//umls/"), WithDocumentDB("./docs.db"))
	cfg.Normalize()
	assert.Equal(t, "/data/umls", cfg.ConceptDir)
	assert.Equal(t, "docs.db", cfg.DocumentDB)
	assert.Empty(t, cfg.MappingDir)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return New(WithConceptDir("/data/umls"), WithDocumentDB("/data/docs.db"), WithSnapshotDir("/data/txn"))
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("in memory needs no store paths", func(t *testing.T) {
		assert.NoError(t, New(WithConceptDir("/data/umls"), WithInMemory(true)).Validate())
	})

	tests := []struct {
		name string
		opt  Option
		want string
	}{
		{"missing concept dir", WithConceptDir(""), "ConceptDir"},
		{"missing document db", WithDocumentDB(""), "DocumentDB"},
		{"missing snapshot dir", WithSnapshotDir(""), "SnapshotDir"},
		{"negative depth", WithDefaultDepth(-1), "DefaultDepth"},
		{"zero pool", WithPoolSize(0), "PoolSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.opt(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
