package ontoquery

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/ontoquery/concept"
	"github.com/poiesic/ontoquery/config"
	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/expand"
	"github.com/poiesic/ontoquery/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(opts ...config.Option) *config.Config {
	base := []config.Option{
		config.WithConceptDir(filepath.Join("testdata", "tables")),
		config.WithMappingDir(filepath.Join("testdata", "mappings")),
		config.WithInMemory(true),
		config.WithPoolSize(2),
	}
	return config.New(append(base, opts...)...)
}

func openTestEngine(t *testing.T, cfg *config.Config, opts ...Option) *Engine {
	t.Helper()
	clock := WithClock(func() time.Time { return time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC) })
	e, err := Open(context.Background(), cfg, append([]Option{clock}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	pipeline, err := e.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()
	stats, err := pipeline.IngestDir(context.Background(), filepath.Join("testdata", "docs"))
	require.NoError(t, err)
	require.Equal(t, 5, stats.Documents)
	return e
}

func TestOpen(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := Open(context.Background(), nil)
		assert.Error(t, err)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := Open(context.Background(), config.New())
		assert.Error(t, err)
	})

	t.Run("missing tables", func(t *testing.T) {
		_, err := Open(context.Background(), testConfig(config.WithConceptDir(t.TempDir())))
		assert.Error(t, err)
	})

	t.Run("loads graph and mappings", func(t *testing.T) {
		e := openTestEngine(t, testConfig())
		assert.IsType(t, &concept.Graph{}, e.Source())
		assert.Equal(t, []string{"fractures", "lung"}, e.Mappings().Names())
		assert.Equal(t, expand.MappingName, e.Classify("lung"))
		assert.Equal(t, expand.ExternalCode, e.Classify("302551006"))
	})
}

func TestQueryJSON_EndToEnd(t *testing.T) {
	e := openTestEngine(t, testConfig())
	ctx := context.Background()

	result, err := e.QueryJSON(ctx, []byte(`{
		"terms": [{"q": "C0205076", "qdepth": 1, "qonlysty": true,
		           "negation": "Any", "temporality": "Any", "experiencer": "Any"}],
		"returnFields": ["SOPInstanceUID"]
	}`))
	require.NoError(t, err)

	data, err := json.Marshal(result.Projection)
	require.NoError(t, err)
	assert.JSONEq(t, `["1.2.3.1","1.2.3.2","1.3.1.1"]`, string(data))

	snap, err := e.Transaction(ctx, result.Handle())
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.3.1", "1.2.3.2", "1.3.1.1"}, snap.Identifiers)
}

func TestQueryJSON_DefaultDepth(t *testing.T) {
	ctx := context.Background()
	request := []byte(`{"terms": [{"q": "C0205076"}]}`)

	shallow := openTestEngine(t, testConfig())
	result, err := shallow.QueryJSON(ctx, request)
	require.NoError(t, err)
	assert.Equal(t, []any{"1.2.3.1"}, result.Projection.Values)

	deep := openTestEngine(t, testConfig(config.WithDefaultDepth(1)))
	result, err = deep.QueryJSON(ctx, request)
	require.NoError(t, err)
	assert.Equal(t, []any{"1.2.3.1", "1.2.3.2", "1.3.1.1"}, result.Projection.Values)
}

func TestQueryJSON_MappingAndQualifier(t *testing.T) {
	e := openTestEngine(t, testConfig())
	ctx := context.Background()

	result, err := e.QueryJSON(ctx, []byte(`{"terms": [{"q": "fractures"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []any{"1.5.1.1"}, result.Projection.Values)

	result, err = e.QueryJSON(ctx, []byte(`{
		"terms": [{"q": "C0035522", "negation": "Affirmed", "experiencer": ["Patient"]}],
		"filter": {"modalities": "CT,MR", "start_date": "2021-01-01"},
		"returnFields": ["StudyInstanceUID", "SOPInstanceUID"]
	}`))
	require.NoError(t, err)

	data, err := json.Marshal(result.Projection)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"StudyInstanceUID":"1.5","SOPInstanceUID":"1.5.1.1"}]`, string(data))
}

func TestQueryJSON_Rejected(t *testing.T) {
	e := openTestEngine(t, testConfig())
	ctx := context.Background()

	_, err := e.QueryJSON(ctx, []byte(`{"terms": []}`))
	assert.ErrorIs(t, err, core.ErrEmptyQuery)

	_, err = e.QueryJSON(ctx, []byte(`{"terms": [{"q": "lung"}], "returnFields": ["doc; DROP TABLE documents"]}`))
	assert.Error(t, err)

	_, err = e.QueryJSON(ctx, []byte(`{"terms": [{"q": "lung"}], "filter": {"start_date": "2021/01/01"}}`))
	assert.Error(t, err)

	handles, err := e.Transactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, handles, "rejected queries record nothing")
}

func TestTransactions(t *testing.T) {
	e := openTestEngine(t, testConfig())
	ctx := context.Background()

	result, err := e.Query(ctx, core.Query{Filter: core.FilterBlock{StartDate: "1990-01-01"}})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Projection.Len(), "documents without a date fall outside any range")

	handles, err := e.Transactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{result.Handle()}, handles)

	sample, err := e.Sample(ctx, result.Handle(), nil)
	require.NoError(t, err)
	assert.Empty(t, sample, "fewer than ten identifiers give an empty sample")

	require.NoError(t, e.Purge(ctx, result.Handle()))
	_, err = e.Transaction(ctx, result.Handle())
	assert.ErrorIs(t, err, transaction.ErrUnknownHandle)
}

func TestLazyConcepts(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(
		config.WithInMemory(false),
		config.WithLazyConcepts(true),
		config.WithDocumentDB(filepath.Join(dir, "documents.db")),
		config.WithSnapshotDir(filepath.Join(dir, "transactions")),
	)
	ctx := context.Background()

	e := openTestEngine(t, cfg)
	assert.IsType(t, &concept.LazySource{}, e.Source())

	result, err := e.Query(ctx, core.Query{Terms: []core.QueryTerm{{Raw: []string{"C0205076"}, Depth: 1, SameTypeOnly: true}}})
	require.NoError(t, err)
	assert.Equal(t, []any{"1.2.3.1", "1.2.3.2", "1.3.1.1"}, result.Projection.Values)
	require.NoError(t, e.Close())

	// Reopening reuses the stored concept rows and the recorded transaction.
	reopened, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	label, err := reopened.Source().Label(ctx, "C0205076")
	require.NoError(t, err)
	assert.Equal(t, "Chest wall", label)

	snap, err := reopened.Transaction(ctx, result.Handle())
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.3.1", "1.2.3.2", "1.3.1.1"}, snap.Identifiers)

	n, err := reopened.ImportConcepts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = os.Stat(filepath.Join(dir, "documents.db"))
	assert.NoError(t, err)
}
