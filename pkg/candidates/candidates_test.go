package candidates

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/willbeason/table-linking/pkg/cache"
	"github.com/willbeason/table-linking/pkg/kb"
	"github.com/willbeason/table-linking/pkg/ned"
	"github.com/willbeason/table-linking/pkg/search"
	"go.uber.org/zap/zaptest"
)

// fakeSearcher answers from a fixed table and records every batch it sees.
type fakeSearcher struct {
	mu      sync.Mutex
	answers map[string][]search.Match
	batches [][]string
	err     error
}

func (s *fakeSearcher) BatchQuery(_ context.Context, queries []string) (map[string][]search.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = append(s.batches, slices.Clone(queries))
	if s.err != nil {
		return nil, s.err
	}
	result := make(map[string][]search.Match, len(queries))
	for _, q := range queries {
		result[q] = slices.Clone(s.answers[q])
	}
	return result, nil
}

func (s *fakeSearcher) queried() []string {
	var result []string
	for _, b := range s.batches {
		result = append(result, b...)
	}
	return result
}

func newStore() *kb.MemoryStore {
	store := kb.NewMemoryStore()
	store.Add(kb.Record{ID: "Q90", Label: "Paris", Aliases: []string{"City of Light"}, Popularity: 0.9})
	store.Add(kb.Record{ID: "Q1234", Label: "Paris, Texas", Popularity: 0.1})
	store.Add(kb.Record{ID: "Q142", Label: "France", Popularity: 0.8})
	store.Add(kb.Record{ID: "Q64", Label: "Berlin", Popularity: 0.7})
	return store
}

func newSearcher() *fakeSearcher {
	return &fakeSearcher{answers: map[string][]search.Match{
		"Paris":  {{ID: "Q1234", Score: 0.1}, {ID: "Q90", Score: 0.9}},
		"France": {{ID: "Q142", Score: 0.7}},
		"Berlin": {{ID: "Q64", Score: 0.5}, {ID: "Q90", Score: 0.05}},
	}}
}

func table(id string, columns ...[]string) ned.Table {
	t := ned.Table{ID: id}
	for i, values := range columns {
		t.Columns = append(t.Columns, ned.Column{Index: i, Values: values})
	}
	return t
}

// parisExample has one entity column with "Paris" twice, linked to Q90 and
// NIL.
func parisExample() *ned.Example {
	return &ned.Example{
		Table:         table("t1", []string{"Paris", "Paris"}),
		EntityColumns: []int{0},
		Links: [][]*ned.CellLink{
			{{Entities: []string{"Q90"}}},
			{{Entities: []string{}}},
		},
	}
}

func TestQueryEngine_Deduplicates(t *testing.T) {
	ctx := context.Background()
	searcher := newSearcher()
	engine := NewQueryEngine(searcher, WithEngineLogger(zaptest.NewLogger(t)))

	examples := []*ned.Example{
		parisExample(),
		{Table: table("t2", []string{"Berlin", "Paris"}, []string{"France", "Atlantis"}), EntityColumns: []int{1, 0}},
	}

	got, err := engine.Query(ctx, examples, nil)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"Paris", "France", "Atlantis", "Berlin"}, searcher.queried()); diff != "" {
		t.Errorf("queried mismatch (-want +got):\n%s", diff)
	}
	if len(searcher.batches) != 1 {
		t.Errorf("got %d backend calls, want 1", len(searcher.batches))
	}

	want := map[string][]search.Match{
		"Paris":    {{ID: "Q90", Score: 0.9}, {ID: "Q1234", Score: 0.1}},
		"France":   {{ID: "Q142", Score: 0.7}},
		"Berlin":   {{ID: "Q64", Score: 0.5}, {ID: "Q90", Score: 0.05}},
		"Atlantis": {},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Query() mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryEngine_InvalidColumn(t *testing.T) {
	engine := NewQueryEngine(newSearcher())

	_, err := engine.Query(context.Background(), []*ned.Example{parisExample()}, [][]int{{3}})
	if !errors.Is(err, ErrInvalidColumn) {
		t.Errorf("got error %v, want %v", err, ErrInvalidColumn)
	}
}

func TestQueryEngine_Batches(t *testing.T) {
	ctx := context.Background()
	searcher := newSearcher()
	engine := NewQueryEngine(searcher, WithBatchSize(2), WithParallelism(2))

	got, err := engine.Resolve(ctx, []string{"Paris", "France", "Berlin", "Atlantis", "Oz"})
	if err != nil {
		t.Fatal(err)
	}

	if len(searcher.batches) != 3 {
		t.Errorf("got %d backend calls, want 3", len(searcher.batches))
	}
	for _, b := range searcher.batches {
		if len(b) > 2 {
			t.Errorf("got batch of %d queries, want at most 2", len(b))
		}
	}
	if len(got) != 5 {
		t.Errorf("got %d results, want 5", len(got))
	}
}

func TestQueryEngine_CacheIdempotence(t *testing.T) {
	ctx := context.Background()
	searcher := newSearcher()
	c := cache.NewMemory(time.Minute, 0)
	engine := NewQueryEngine(searcher, WithCache(c, "memory"))

	first, err := engine.Resolve(ctx, []string{"Paris"})
	if err != nil {
		t.Fatal(err)
	}

	cached, found, err := c.Get(ctx, "Paris")
	if err != nil || !found {
		t.Fatalf("result was not written through to the cache: found=%v err=%v", found, err)
	}
	if diff := cmp.Diff(first["Paris"], cached); diff != "" {
		t.Errorf("cached entry mismatch (-want +got):\n%s", diff)
	}

	second, err := engine.Resolve(ctx, []string{"Paris", "France"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first["Paris"], second["Paris"]); diff != "" {
		t.Errorf("cached result mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Paris", "France"}, searcher.queried()); diff != "" {
		t.Errorf("queried mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryEngine_Deterministic(t *testing.T) {
	ctx := context.Background()
	queries := []string{"Paris", "France", "Berlin"}

	var entries []map[string][]search.Match
	for range 2 {
		c := cache.NewMemory(0, 0)
		engine := NewQueryEngine(newSearcher(), WithCache(c, "memory"), WithBatchSize(1), WithParallelism(3))
		_, err := engine.Resolve(ctx, queries)
		if err != nil {
			t.Fatal(err)
		}

		entry := make(map[string][]search.Match)
		for _, q := range queries {
			entry[q], _, _ = c.Get(ctx, q)
		}
		entries = append(entries, entry)
	}

	if diff := cmp.Diff(entries[0], entries[1]); diff != "" {
		t.Errorf("cache entries differ between runs (-first +second):\n%s", diff)
	}
}

func TestQueryEngine_BackendError(t *testing.T) {
	errBackend := errors.New("backend down")
	searcher := newSearcher()
	searcher.err = errBackend
	c := cache.NewMemory(0, 0)
	engine := NewQueryEngine(searcher, WithCache(c, "memory"))

	_, err := engine.Resolve(context.Background(), []string{"Paris"})
	if !errors.Is(err, errBackend) {
		t.Errorf("got error %v, want %v", err, errBackend)
	}
	if c.Len() != 0 {
		t.Errorf("got %d cache entries after a failed call, want 0", c.Len())
	}
}

func TestQueryEngine_IncompleteBackend(t *testing.T) {
	engine := NewQueryEngine(search.SearcherFunc(func(context.Context, []string) (map[string][]search.Match, error) {
		return map[string][]search.Match{}, nil
	}))

	_, err := engine.Resolve(context.Background(), []string{"Paris"})
	if !errors.Is(err, search.ErrIncomplete) {
		t.Errorf("got error %v, want %v", err, search.ErrIncomplete)
	}
}

// countingStore counts batched lookups.
type countingStore struct {
	*kb.MemoryStore
	metadataCalls   int
	popularityCalls int
	ids             []string
}

func (s *countingStore) Metadata(ctx context.Context, ids []string) (map[string]kb.Metadata, error) {
	s.metadataCalls++
	s.ids = slices.Clone(ids)
	return s.MemoryStore.Metadata(ctx, ids)
}

func (s *countingStore) Popularity(ctx context.Context, ids []string) (map[string]float64, error) {
	s.popularityCalls++
	return s.MemoryStore.Popularity(ctx, ids)
}

func buildDataset(t *testing.T, examples []*ned.Example) *Dataset {
	t.Helper()
	ctx := context.Background()

	results, err := NewQueryEngine(newSearcher()).Query(ctx, examples, nil)
	if err != nil {
		t.Fatal(err)
	}
	d, err := BuildDataset(ctx, newStore(), examples, nil, results, "fts")
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Validate(); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestBuildDataset(t *testing.T) {
	ctx := context.Background()
	examples := []*ned.Example{
		parisExample(),
		{Table: table("t2", []string{"Berlin", "Atlantis"}), EntityColumns: []int{0}},
	}

	results, err := NewQueryEngine(newSearcher()).Query(ctx, examples, nil)
	if err != nil {
		t.Fatal(err)
	}

	store := &countingStore{MemoryStore: newStore()}
	d, err := BuildDataset(ctx, store, examples, nil, results, "fts")
	if err != nil {
		t.Fatal(err)
	}

	if store.metadataCalls != 1 || store.popularityCalls != 1 {
		t.Errorf("got %d metadata and %d popularity calls, want 1 each", store.metadataCalls, store.popularityCalls)
	}
	if diff := cmp.Diff([]string{"Q90", "Q1234", "Q64"}, store.ids); diff != "" {
		t.Errorf("looked up ids mismatch (-want +got):\n%s", diff)
	}

	if err := d.Validate(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Q90", "Q1234", "Q90", "Q1234", "Q64", "Q90"}, d.ID); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	// Both "Paris" cells hold the same candidates from one lookup.
	row0, _ := d.Cell("t1", 0, 0)
	row1, _ := d.Cell("t1", 0, 1)
	if diff := cmp.Diff(row0, row1); diff != "" {
		t.Errorf("duplicate cells differ (-row0 +row1):\n%s", diff)
	}
	if row0.Label[0] != "Paris" || row0.Popularity[0] != 0.9 || row0.Provenance[0] != "fts" {
		t.Errorf("got candidate %+v, want resolved Paris", row0.Candidate(0))
	}

	r, ok := d.Index.Cell("t2", 0, 1)
	if !ok || r.Len() != 0 {
		t.Errorf("got range %v for cell without matches, want an empty range", r)
	}
	if d.HasCell("t2", 0, 1) {
		t.Error("HasCell reported candidates for an empty cell")
	}
}

func TestBuildDataset_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := BuildDataset(ctx, newStore(), []*ned.Example{parisExample()}, nil, map[string][]search.Match{}, "fts")
	if !errors.Is(err, ErrMissingQuery) {
		t.Errorf("got error %v, want %v", err, ErrMissingQuery)
	}

	results := map[string][]search.Match{"Paris": nil}
	_, err = BuildDataset(ctx, newStore(), []*ned.Example{parisExample(), parisExample()}, nil, results, "fts")
	if err == nil {
		t.Error("got no error for duplicate table ids")
	}
}

func TestDataset_Accessors(t *testing.T) {
	d := buildDataset(t, []*ned.Example{
		parisExample(),
		{Table: table("t2", []string{"Berlin"}, []string{"France"}), EntityColumns: []int{0, 1}},
		{Table: table("t3", []string{"France"}), EntityColumns: []int{0}},
	})

	column, ok := d.Column("t2", 0)
	if !ok || column.Len() != 2 {
		t.Errorf("got column of %d candidates, want 2", column.Len())
	}
	tbl, ok := d.Table("t2")
	if !ok || tbl.Len() != 3 {
		t.Errorf("got table of %d candidates, want 3", tbl.Len())
	}

	cand, ok := d.CandidateByID("t2", 0, 0, "Q90")
	if !ok || cand.Score != 0.05 {
		t.Errorf("got %+v, want Q90 with score 0.05", cand)
	}
	if _, ok := d.CandidateByID("t2", 0, 0, "Q142"); ok {
		t.Error("found a candidate of another cell")
	}

	if diff := cmp.Diff([]int{0, 0, 1, 1, 0, 0, 0, 0}, d.RowIndex()); diff != "" {
		t.Errorf("RowIndex() mismatch (-want +got):\n%s", diff)
	}

	sub, err := d.Select("t2", "t3")
	if err != nil {
		t.Fatal(err)
	}
	if err := sub.Validate(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Q64", "Q90", "Q142", "Q142"}, sub.ID); diff != "" {
		t.Errorf("selected ids mismatch (-want +got):\n%s", diff)
	}
	if _, err := d.Select("t1", "t3"); err == nil {
		t.Error("got no error selecting tables that are not consecutive")
	}

	_, err = d.WithScores([]float64{1})
	if !errors.Is(err, ErrMisaligned) {
		t.Errorf("got error %v, want %v", err, ErrMisaligned)
	}
}

func TestDataset_TopK(t *testing.T) {
	d := buildDataset(t, []*ned.Example{
		{Table: table("t1", []string{"Paris", "Berlin", "France"}), EntityColumns: []int{0}},
	})
	// ids: Q90 Q1234 | Q64 Q90 | Q142

	gold := map[int][]kb.Entity{
		0: {{ID: "Q1234", Label: "Paris, Texas"}},
		1: {{ID: "Q64", Label: "Berlin"}},
		2: {},
	}
	lookup := func(tableID string, column, row int) []kb.Entity {
		return gold[row]
	}

	top, remap, err := d.TopK(1, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Q90", "Q64", "Q142"}, top.ID); diff != "" {
		t.Errorf("top-1 ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 2, 4}, remap); diff != "" {
		t.Errorf("top-1 remap mismatch (-want +got):\n%s", diff)
	}

	top, remap, err = d.TopK(1, lookup, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := top.Validate(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Q1234", "Q64"}, top.ID); diff != "" {
		t.Errorf("oracle ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{Oracle, "fts"}, top.Provenance); diff != "" {
		t.Errorf("oracle provenance mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{Injected, 2}, remap); diff != "" {
		t.Errorf("oracle remap mismatch (-want +got):\n%s", diff)
	}
	if top.Score[0] != 0 {
		t.Errorf("got injected score %v, want 0", top.Score[0])
	}
	if r, _ := top.Index.Cell("t1", 0, 2); r.Len() != 0 {
		t.Errorf("got %d candidates for a cell without gold entities, want 0", r.Len())
	}
}

func TestDataset_TopK_Negative(t *testing.T) {
	d := buildDataset(t, []*ned.Example{
		{Table: table("t1", []string{"Paris", "Berlin"}), EntityColumns: []int{0}},
	})

	_, _, err := d.TopK(-1, nil, false)
	if !errors.Is(err, ErrNegativeK) {
		t.Errorf("got error %v, want %v", err, ErrNegativeK)
	}

	top, remap, err := d.TopK(0, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if top.Len() != 0 || len(remap) != 0 {
		t.Errorf("got %d candidates and %d remapped positions for k = 0, want none", top.Len(), len(remap))
	}
}

func TestDataset_Filter(t *testing.T) {
	d := buildDataset(t, []*ned.Example{parisExample()})

	filtered, err := d.Filter(func(i int) bool {
		return d.ID[i] == "Q90"
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := filtered.Validate(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Q90", "Q90"}, filtered.ID); diff != "" {
		t.Errorf("filtered ids mismatch (-want +got):\n%s", diff)
	}
	if d.Len() != 4 {
		t.Errorf("Filter modified its source")
	}
}
