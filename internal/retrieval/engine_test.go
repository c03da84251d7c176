package retrieval

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docintel/internal/models"
	"docintel/internal/store"
)

// fakeSource serves canned candidates, keyed by scope the way the store's
// WHERE clause would filter them.
type fakeSource struct {
	sem    map[string][]store.Candidate
	lex    map[string][]store.Candidate
	doc    *models.Document
	chunks []models.Chunk
}

func key(scope *uuid.UUID) string {
	if scope == nil {
		return ""
	}
	return scope.String()
}

func (f *fakeSource) SemanticCandidates(_ context.Context, _ []float32, _ int, scope *uuid.UUID) ([]store.Candidate, error) {
	return f.sem[key(scope)], nil
}

func (f *fakeSource) LexicalCandidates(_ context.Context, _ string, _ int, scope *uuid.UUID) ([]store.Candidate, error) {
	return f.lex[key(scope)], nil
}

func (f *fakeSource) GetDocument(_ context.Context, id uuid.UUID) (*models.Document, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, models.ErrNotFound
	}
	return f.doc, nil
}

func (f *fakeSource) GetDocumentChunks(_ context.Context, _ uuid.UUID) ([]models.Chunk, error) {
	return f.chunks, nil
}

// fixedEmbedder always returns the same query vector.
type fixedEmbedder struct{ vec []float32 }

func (f fixedEmbedder) Dim() int { return len(f.vec) }

func (f fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func cand(idx int, content string, emb []float32) store.Candidate {
	return store.Candidate{
		ChunkID:    uuid.New(),
		DocumentID: uuid.New(),
		ChunkIndex: idx,
		Content:    content,
		Source:     "text",
		Filename:   "doc.txt",
		Embedding:  emb,
	}
}

func newTestEngine(src *fakeSource, queryVec []float32) *Engine {
	return NewEngine(src, fixedEmbedder{vec: queryVec}, zerolog.Nop())
}

func TestSemanticSearchRanksByCosine(t *testing.T) {
	exact := cand(0, "exact match", []float32{1, 0, 0})
	near := cand(1, "near match", []float32{1, 1, 0})
	orthogonal := cand(2, "unrelated", []float32{0, 1, 0})
	src := &fakeSource{sem: map[string][]store.Candidate{
		"": {orthogonal, near, exact},
	}}
	e := newTestEngine(src, []float32{1, 0, 0})

	results, err := e.SemanticSearch(context.Background(), "query", 0.5, 10, nil)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, exact.ChunkID, results[0].ChunkID)
	assert.Equal(t, near.ChunkID, results[1].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 1/math.Sqrt2, results[1].Score, 1e-6)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestSemanticSearchThresholdIsStrict(t *testing.T) {
	// cosine([1,0,0], [1,1,0]) is exactly 1/sqrt(2); a threshold at that
	// value must exclude the candidate.
	c := cand(0, "boundary", []float32{1, 1, 0})
	src := &fakeSource{sem: map[string][]store.Candidate{"": {c}}}
	e := newTestEngine(src, []float32{1, 0, 0})
	ctx := context.Background()

	at, err := e.SemanticSearch(ctx, "query", 1/math.Sqrt(2), 10, nil)
	require.NoError(t, err)
	assert.Empty(t, at)

	below, err := e.SemanticSearch(ctx, "query", 0.7, 10, nil)
	require.NoError(t, err)
	assert.Len(t, below, 1)
}

func TestSemanticSearchDeterministicTieBreaks(t *testing.T) {
	a := cand(5, "same vector", []float32{1, 0, 0})
	b := cand(2, "same vector", []float32{1, 0, 0})
	idLow := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	idHigh := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	c := cand(2, "same vector", []float32{1, 0, 0})
	a.ChunkID, c.ChunkID = idHigh, idLow

	src := &fakeSource{sem: map[string][]store.Candidate{"": {a, b, c}}}
	e := newTestEngine(src, []float32{1, 0, 0})

	results, err := e.SemanticSearch(context.Background(), "query", 0.1, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Equal scores: lower chunk index first, then lower chunk id.
	assert.Equal(t, 2, results[0].ChunkIndex)
	assert.Equal(t, 2, results[1].ChunkIndex)
	assert.Equal(t, 5, results[2].ChunkIndex)
	first := []uuid.UUID{results[0].ChunkID, results[1].ChunkID}
	assert.Contains(t, first, idLow)
	assert.Less(t, results[0].ChunkID.String(), results[1].ChunkID.String())
}

func TestSemanticSearchLimit(t *testing.T) {
	var cands []store.Candidate
	for i := 0; i < 8; i++ {
		cands = append(cands, cand(i, "content", []float32{1, 0, 0}))
	}
	src := &fakeSource{sem: map[string][]store.Candidate{"": cands}}
	e := newTestEngine(src, []float32{1, 0, 0})

	results, err := e.SemanticSearch(context.Background(), "query", 0.1, 3, nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSemanticSearchValidation(t *testing.T) {
	e := newTestEngine(&fakeSource{}, []float32{1, 0, 0})
	ctx := context.Background()

	_, err := e.SemanticSearch(ctx, "   ", 0.5, 10, nil)
	assert.ErrorIs(t, err, models.ErrInvalidQuery)

	_, err = e.SemanticSearch(ctx, "query", 0.5, 0, nil)
	assert.ErrorIs(t, err, models.ErrInvalidQuery)

	_, err = e.SemanticSearch(ctx, "query", 1.5, 10, nil)
	assert.ErrorIs(t, err, models.ErrInvalidQuery)

	_, err = e.SemanticSearch(ctx, "query", -0.1, 10, nil)
	assert.ErrorIs(t, err, models.ErrInvalidQuery)
}

func TestLexicalSearchCoverageBeatsRepetition(t *testing.T) {
	both := cand(0, "The wire transfer cleared overnight.", nil)
	repeated := cand(1, "wire wire wire wire wire", nil)
	neither := cand(2, "Completely unrelated prose.", nil)
	src := &fakeSource{lex: map[string][]store.Candidate{
		"": {repeated, both, neither},
	}}
	e := newTestEngine(src, []float32{1, 0, 0})

	results, err := e.LexicalSearch(context.Background(), "wire transfer", 10, nil)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, both.ChunkID, results[0].ChunkID)
	assert.Equal(t, repeated.ChunkID, results[1].ChunkID)
	// Normalized by the best score in the set.
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestLexicalSearchRejectsUnsearchableQuery(t *testing.T) {
	e := newTestEngine(&fakeSource{}, []float32{1, 0, 0})
	_, err := e.LexicalSearch(context.Background(), "!!! ???", 10, nil)
	assert.ErrorIs(t, err, models.ErrInvalidQuery)
}

func TestHybridSearchBlendsScores(t *testing.T) {
	semOnly := cand(0, "no overlapping terms here", []float32{1, 0, 0})
	lexOnly := cand(1, "the wire transfer records", nil)
	src := &fakeSource{
		sem: map[string][]store.Candidate{"": {semOnly}},
		lex: map[string][]store.Candidate{"": {lexOnly}},
	}
	e := newTestEngine(src, []float32{1, 0, 0})

	results, err := e.HybridSearch(context.Background(), "wire transfer", 0.7, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[uuid.UUID]models.SearchResult{}
	for _, r := range results {
		byID[r.ChunkID] = r
	}

	s := byID[semOnly.ChunkID]
	assert.InDelta(t, 1.0, s.SemanticScore, 1e-9)
	assert.Zero(t, s.LexicalScore)
	assert.InDelta(t, 0.7, s.Score, 1e-9)

	l := byID[lexOnly.ChunkID]
	assert.Zero(t, l.SemanticScore)
	assert.InDelta(t, 1.0, l.LexicalScore, 1e-9)
	assert.InDelta(t, 0.3, l.Score, 1e-9)

	assert.Equal(t, semOnly.ChunkID, results[0].ChunkID)
}

func TestHybridSearchWeightExtremes(t *testing.T) {
	shared := cand(0, "wire transfer ledger", []float32{1, 1, 0})
	semBetter := cand(1, "irrelevant words only", []float32{1, 0, 0})
	src := &fakeSource{
		sem: map[string][]store.Candidate{"": {shared, semBetter}},
		lex: map[string][]store.Candidate{"": {shared}},
	}
	e := newTestEngine(src, []float32{1, 0, 0})
	ctx := context.Background()

	// Weight 1: pure semantic ordering.
	semResults, err := e.HybridSearch(ctx, "wire transfer", 1.0, 10, nil)
	require.NoError(t, err)
	require.Len(t, semResults, 2)
	assert.Equal(t, semBetter.ChunkID, semResults[0].ChunkID)

	// Weight 0: pure lexical ordering.
	lexResults, err := e.HybridSearch(ctx, "wire transfer", 0.0, 10, nil)
	require.NoError(t, err)
	require.Len(t, lexResults, 2)
	assert.Equal(t, shared.ChunkID, lexResults[0].ChunkID)
	assert.Zero(t, lexResults[1].Score)
}

func TestHybridSearchRejectsInvalidWeight(t *testing.T) {
	e := newTestEngine(&fakeSource{}, []float32{1, 0, 0})
	_, err := e.HybridSearch(context.Background(), "query", 1.2, 10, nil)
	assert.ErrorIs(t, err, models.ErrInvalidQuery)
}

func TestSearchScopeIsolation(t *testing.T) {
	caseA := uuid.New()
	inScope := cand(0, "scoped content", []float32{1, 0, 0})
	outOfScope := cand(1, "other case content", []float32{1, 0, 0})
	src := &fakeSource{sem: map[string][]store.Candidate{
		caseA.String(): {inScope},
		"":             {outOfScope},
	}}
	e := newTestEngine(src, []float32{1, 0, 0})

	results, err := e.SemanticSearch(context.Background(), "query", 0.1, 10, &caseA)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, inScope.ChunkID, results[0].ChunkID)
}

func TestDocumentContext(t *testing.T) {
	docID := uuid.New()
	src := &fakeSource{
		doc: &models.Document{ID: docID, Filename: "report.pdf", FileType: models.FileTypePDF, Title: "Q3"},
		chunks: []models.Chunk{
			{ChunkIndex: 0, Source: "page_1", Heading: "Intro", Content: "Opening text."},
			{ChunkIndex: 1, Source: "page_2", Content: "Second page text."},
		},
	}
	e := newTestEngine(src, []float32{1, 0, 0})

	dc, err := e.DocumentContext(context.Background(), docID)
	require.NoError(t, err)

	assert.Equal(t, docID, dc.DocumentID)
	assert.Equal(t, "report.pdf", dc.Filename)
	assert.Len(t, dc.Chunks, 2)
	assert.Equal(t,
		"[page_1 - Intro]\nOpening text.\n\n[page_2]\nSecond page text.",
		dc.ContextText)
}

func TestDocumentContextNotFound(t *testing.T) {
	e := newTestEngine(&fakeSource{}, []float32{1, 0, 0})
	_, err := e.DocumentContext(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
