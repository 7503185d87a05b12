package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/ontoquery/compiler"
	"github.com/poiesic/ontoquery/concept"
	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/expand"
	"github.com/poiesic/ontoquery/predicate"
	"github.com/poiesic/ontoquery/storage"
	"github.com/poiesic/ontoquery/storage/badger"
	"github.com/poiesic/ontoquery/storage/sqlite"
	"github.com/poiesic/ontoquery/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	`{"SOPInstanceUID":"1.2.3.1","SeriesInstanceUID":"1.2.3","StudyInstanceUID":"1.2",
	  "ContentDate":"20190315","ModalitiesInStudy":"CT\\SR",
	  "annotations":[{"cui":"C0205076","pref":"Chest wall","negation":"Affirmed","experiencer":"Patient"}]}`,
	`{"SOPInstanceUID":"1.2.3.2","SeriesInstanceUID":"1.2.3","StudyInstanceUID":"1.2",
	  "ContentDate":"20200102","ModalitiesInStudy":"MR",
	  "annotations":[{"cui":"C0222762","pref":"Rib cage","negation":"Negated"}]}`,
	`{"SOPInstanceUID":"1.3.1.1","SeriesInstanceUID":"1.3.1","StudyInstanceUID":"1.3",
	  "ContentDate":"20180101","ModalitiesInStudy":"CR",
	  "annotations":[{"cui":"C0024109","pref":"Lung"},{"cui":"C0016658","pref":"Fracture"}]}`,
	`{"SOPInstanceUID":"1.4.1.1","SeriesInstanceUID":"1.4.1","StudyInstanceUID":"1.4",
	  "ContentDate":"20210601","ModalitiesInStudy":"CT",
	  "annotations":[{"cui":"C0016658","pref":"Fracture","negation":"Affirmed"}]}`,
}

type fixture struct {
	searcher  *Searcher
	store     *sqlite.Store
	tracker   *transaction.Tracker
	snapshots storage.SnapshotRepository
}

func testGraph(t *testing.T) *concept.Graph {
	t.Helper()
	g, err := concept.NewGraph(&concept.Tables{
		Concepts: []*core.Concept{
			{ID: "C0205076", SemanticGroups: []string{"ANAT"}, Label: "Chest wall"},
			{ID: "C0222762", SemanticGroups: []string{"ANAT"}, Label: "Rib cage"},
			{ID: "C0024109", SemanticGroups: []string{"ANAT", "PHYS"}, Label: "Lung"},
			{ID: "C0016658", SemanticGroups: []string{"DISO"}, Label: "Fracture"},
		},
		Narrower: map[core.ConceptID][]core.ConceptID{
			"C0205076": {"C0222762", "C0016658", "C0024109"},
			"C0222762": {"C0205076"},
		},
		Codes: map[string]core.ConceptID{"302551006": "C0205076"},
	})
	require.NoError(t, err)
	return g
}

func addCorpus(t *testing.T, store storage.DocumentStore, raws ...string) {
	t.Helper()
	docs := make([]*core.Document, len(raws))
	for i, raw := range raws {
		var err error
		docs[i], err = core.ParseDocument([]byte(raw))
		require.NoError(t, err)
	}
	require.NoError(t, store.AddDocuments(context.Background(), docs...))
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	expander, err := expand.NewExpander(testGraph(t), expand.WithMappings(concept.NewMappings(
		map[string]map[core.ConceptID]string{"fractures": {"C0016658": "Fracture"}})))
	require.NoError(t, err)
	comp, err := compiler.New(compiler.WithClock(func() time.Time {
		return time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)

	store, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	addCorpus(t, store, corpus...)

	_, snapshots, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	tracker, err := transaction.NewTracker(snapshots)
	require.NoError(t, err)

	searcher, err := NewSearcher(expander, comp, store, tracker, opts...)
	require.NoError(t, err)
	return &fixture{searcher: searcher, store: store, tracker: tracker, snapshots: snapshots}
}

func term(raw string, depth int) core.QueryTerm {
	return core.QueryTerm{Raw: []string{raw}, Depth: depth, SameTypeOnly: true}
}

// recordingMonitor keeps every hook call for inspection.
type recordingMonitor struct {
	started    int
	stages     []core.Stage
	expansions []expand.Expansion
	compiled   *compiler.CompiledQuery
	failedAt   core.Stage
	failure    error
	finished   *Result
}

func (m *recordingMonitor) Start(_ core.Query) { m.started++ }
func (m *recordingMonitor) Reached(stage core.Stage, elapsed time.Duration) {
	m.stages = append(m.stages, stage)
}
func (m *recordingMonitor) AfterExpansion(e []expand.Expansion)    { m.expansions = e }
func (m *recordingMonitor) AfterCompile(q *compiler.CompiledQuery) { m.compiled = q }
func (m *recordingMonitor) Failed(stage core.Stage, err error) {
	m.failedAt, m.failure = stage, err
}
func (m *recordingMonitor) Finish(result *Result) { m.finished = result }

// failingStore fails every Execute call.
type failingStore struct {
	storage.DocumentStore
	err error
}

func (s *failingStore) Execute(_ context.Context, _ *predicate.CompiledQuery, _ *storage.Page) ([][]any, error) {
	return nil, s.err
}

func TestNewSearcher(t *testing.T) {
	f := newFixture(t)
	expander, comp, store, tracker := f.searcher.expander, f.searcher.compiler, f.store, f.tracker

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		s, err := NewSearcher(expander, comp, store, tracker, WithLogger(nil), WithMonitor(nil))
		require.NoError(t, err)
		assert.NotNil(t, s.logger)
		assert.NotNil(t, s.monitor)
	})

	t.Run("nil expander", func(t *testing.T) {
		_, err := NewSearcher(nil, comp, store, tracker)
		assert.Equal(t, ErrExpanderRequired, err)
	})

	t.Run("nil compiler", func(t *testing.T) {
		_, err := NewSearcher(expander, nil, store, tracker)
		assert.Equal(t, ErrCompilerRequired, err)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := NewSearcher(expander, comp, nil, tracker)
		assert.Equal(t, ErrStoreRequired, err)
	})

	t.Run("nil recorder", func(t *testing.T) {
		_, err := NewSearcher(expander, comp, store, nil)
		assert.Equal(t, ErrRecorderRequired, err)
	})
}

func TestSearch_NarrowerConceptsMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.searcher.Search(ctx, core.Query{
		Terms:        []core.QueryTerm{term("C0205076", 1)},
		ReturnFields: []string{core.FieldSOPInstanceUID},
	})
	require.NoError(t, err)

	require.Len(t, result.Expansions, 1)
	assert.Equal(t, []core.ConceptID{"C0205076", "C0222762", "C0024109"}, result.Expansions[0].IDs)
	assert.Equal(t, []any{"1.2.3.1", "1.2.3.2", "1.3.1.1"}, result.Projection.Values)

	snap, err := f.tracker.Load(ctx, result.Handle())
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.3.1", "1.2.3.2", "1.3.1.1"}, snap.Identifiers)
}

func TestSearch_DepthZeroMatchesOnlyTheConcept(t *testing.T) {
	f := newFixture(t)
	result, err := f.searcher.Search(context.Background(), core.Query{
		Terms: []core.QueryTerm{term("C0205076", 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"1.2.3.1"}, result.Projection.Values)
}

func TestSearch_ExternalCodeAndMapping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.searcher.Search(ctx, core.Query{Terms: []core.QueryTerm{term("302551006", 0)}})
	require.NoError(t, err)
	assert.Equal(t, []any{"1.2.3.1"}, result.Projection.Values)

	result, err = f.searcher.Search(ctx, core.Query{Terms: []core.QueryTerm{term("fractures", 0)}})
	require.NoError(t, err)
	assert.Equal(t, []any{"1.3.1.1", "1.4.1.1"}, result.Projection.Values)
}

func TestSearch_FreeText(t *testing.T) {
	f := newFixture(t)
	result, err := f.searcher.Search(context.Background(), core.Query{
		Terms: []core.QueryTerm{term("Rib Cage", 0)},
	})
	require.NoError(t, err)
	assert.True(t, result.Expansions[0].FreeText())
	assert.Equal(t, []any{"1.2.3.2"}, result.Projection.Values)
}

func TestSearch_TermsAreAnded(t *testing.T) {
	f := newFixture(t)
	result, err := f.searcher.Search(context.Background(), core.Query{
		Terms: []core.QueryTerm{term("C0024109", 0), term("fractures", 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"1.3.1.1"}, result.Projection.Values)
}

func TestSearch_Qualifier(t *testing.T) {
	f := newFixture(t)
	tm := term("C0016658", 0)
	tm.Negation = core.Constrain("Affirmed")

	result, err := f.searcher.Search(context.Background(), core.Query{Terms: []core.QueryTerm{tm}})
	require.NoError(t, err)
	assert.Equal(t, []any{"1.4.1.1"}, result.Projection.Values)
}

func TestSearch_FilterOnly(t *testing.T) {
	f := newFixture(t)
	result, err := f.searcher.Search(context.Background(), core.Query{
		Filter: core.FilterBlock{Modalities: core.Constrain("CT"), StartDate: "2019-01-01"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"1.2.3.1", "1.4.1.1"}, result.Projection.Values)
}

func TestSearch_Records(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fields := []string{core.FieldStudyInstanceUID, "ContentDate"}

	result, err := f.searcher.Search(ctx, core.Query{
		Terms:        []core.QueryTerm{term("C0205076", 1)},
		ReturnFields: fields,
	})
	require.NoError(t, err)
	require.Len(t, result.Projection.Records, 3)
	assert.Equal(t, []any{"1.2", "20190315"}, result.Projection.Records[0].Values)

	snap, err := f.tracker.Load(ctx, result.Handle())
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2", "1.2", "1.3"}, snap.Identifiers)
}

func TestSearch_DistinctProjection(t *testing.T) {
	f := newFixture(t)
	result, err := f.searcher.Search(context.Background(), core.Query{
		Terms:        []core.QueryTerm{term("C0205076", 1)},
		ReturnFields: []string{core.FieldStudyInstanceUID},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"1.2", "1.3"}, result.Projection.Values)
}

func TestSearch_EmptyResultIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.searcher.Search(ctx, core.Query{Terms: []core.QueryTerm{term("nothing matches this", 0)}})
	require.NoError(t, err)
	assert.Zero(t, result.Projection.Len())

	snap, err := f.tracker.Load(ctx, result.Handle())
	require.NoError(t, err)
	assert.Empty(t, snap.Identifiers)
}

func TestSearch_EmptyQueryIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	monitor := &recordingMonitor{}

	_, err := f.searcher.SearchWithMonitor(ctx, core.Query{}, monitor)
	assert.ErrorIs(t, err, core.ErrEmptyQuery)
	assert.Equal(t, core.StageCompiled, monitor.failedAt)
	assert.Nil(t, monitor.finished)

	handles, err := f.snapshots.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestSearch_BackendFailureRecordsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("disk on fire")

	s, err := NewSearcher(f.searcher.expander, f.searcher.compiler, &failingStore{DocumentStore: f.store, err: boom}, f.tracker)
	require.NoError(t, err)
	monitor := &recordingMonitor{}

	_, err = s.SearchWithMonitor(ctx, core.Query{Terms: []core.QueryTerm{term("C0205076", 1)}}, monitor)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, core.StageExecuted, monitor.failedAt)

	handles, err := f.snapshots.ListSnapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestSearch_MonitorSeesEveryStage(t *testing.T) {
	monitor := &recordingMonitor{}
	f := newFixture(t, WithMonitor(monitor))

	result, err := f.searcher.Search(context.Background(), core.Query{Terms: []core.QueryTerm{term("C0205076", 1)}})
	require.NoError(t, err)

	assert.Equal(t, 1, monitor.started)
	assert.Equal(t, []core.Stage{
		core.StageReceived, core.StageExpanded, core.StageCompiled,
		core.StageExecuted, core.StageProjected, core.StagePersisted,
	}, monitor.stages)
	assert.Len(t, monitor.expansions, 1)
	assert.Same(t, result.Compiled, monitor.compiled)
	assert.Same(t, result, monitor.finished)
	assert.Nil(t, monitor.failure)
}

func TestSearch_HandlesAreFreshPerQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := core.Query{Terms: []core.QueryTerm{term("C0205076", 1)}}

	first, err := f.searcher.Search(ctx, q)
	require.NoError(t, err)
	second, err := f.searcher.Search(ctx, q)
	require.NoError(t, err)

	assert.NotEqual(t, first.Handle(), second.Handle())
	assert.Equal(t, first.Snapshot.Identifiers, second.Snapshot.Identifiers)
}

func TestSearch_SnapshotIgnoresLaterCorpusChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.searcher.Search(ctx, core.Query{Terms: []core.QueryTerm{term("C0205076", 0)}})
	require.NoError(t, err)

	addCorpus(t, f.store, `{"SOPInstanceUID":"1.5.1.1","annotations":[{"cui":"C0205076"}]}`)

	snap, err := f.tracker.Load(ctx, result.Handle())
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.3.1"}, snap.Identifiers)

	page, err := result.Cursor.Fetch(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []any{"1.2.3.1", "1.5.1.1"}, page.Values, "pages re-execute the predicate")
}
