package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docintel/internal/embedding"
	"docintel/internal/models"
	"docintel/internal/store"
)

// candidateFactor over-fetches candidates so threshold filtering still
// fills the requested limit.
const candidateFactor = 4

// CandidateSource is what the engine needs from the document store.
// *store.Store implements it; tests substitute a fixture.
type CandidateSource interface {
	SemanticCandidates(ctx context.Context, queryVec []float32, k int, scope *uuid.UUID) ([]store.Candidate, error)
	LexicalCandidates(ctx context.Context, query string, k int, scope *uuid.UUID) ([]store.Candidate, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	GetDocumentChunks(ctx context.Context, docID uuid.UUID) ([]models.Chunk, error)
}

// Engine ranks candidate chunks. All scoring runs here in double
// precision so the ranking is identical regardless of which index
// structure surfaced a candidate.
type Engine struct {
	source   CandidateSource
	embedder embedding.Embedder
	log      zerolog.Logger
}

func NewEngine(source CandidateSource, embedder embedding.Embedder, log zerolog.Logger) *Engine {
	return &Engine{source: source, embedder: embedder, log: log}
}

// SemanticSearch embeds the query and ranks candidates by cosine
// similarity, keeping those strictly above the threshold.
func (e *Engine) SemanticSearch(ctx context.Context, query string, threshold float64, limit int, scope *uuid.UUID) ([]models.SearchResult, error) {
	if err := validateQuery(query, limit); err != nil {
		return nil, err
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v outside [0, 1]", models.ErrInvalidQuery, threshold)
	}

	queryVec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	candidates, err := e.source.SemanticCandidates(ctx, queryVec, limit*candidateFactor, scope)
	if err != nil {
		return nil, fmt.Errorf("fetching semantic candidates: %w", err)
	}

	results := make([]models.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		sim := cosineSimilarity(queryVec, c.Embedding)
		if sim <= threshold {
			continue
		}
		r := toResult(c)
		r.Score = sim
		results = append(results, r)
	}
	sortResults(results)
	return truncate(results, limit), nil
}

// LexicalSearch ranks candidates by a term-frequency/coverage function
// over the query terms, normalized to [0, 1] by the best score in the
// candidate set.
func (e *Engine) LexicalSearch(ctx context.Context, query string, limit int, scope *uuid.UUID) ([]models.SearchResult, error) {
	if err := validateQuery(query, limit); err != nil {
		return nil, err
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: no searchable terms", models.ErrInvalidQuery)
	}

	candidates, err := e.source.LexicalCandidates(ctx, query, limit*candidateFactor, scope)
	if err != nil {
		return nil, fmt.Errorf("fetching lexical candidates: %w", err)
	}

	results := make([]models.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		score := lexicalScore(terms, c.Content)
		if score <= 0 {
			continue
		}
		r := toResult(c)
		r.Score = score
		results = append(results, r)
	}
	normalizeScores(results)
	sortResults(results)
	return truncate(results, limit), nil
}

// HybridSearch scores the union of both methods' candidate sets with
// combined = weight*semantic + (1-weight)*lexical. A candidate missing
// from one side contributes 0 for that side rather than being dropped.
func (e *Engine) HybridSearch(ctx context.Context, query string, semanticWeight float64, limit int, scope *uuid.UUID) ([]models.SearchResult, error) {
	if err := validateQuery(query, limit); err != nil {
		return nil, err
	}
	if semanticWeight < 0 || semanticWeight > 1 {
		return nil, fmt.Errorf("%w: semantic weight %v outside [0, 1]", models.ErrInvalidQuery, semanticWeight)
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: no searchable terms", models.ErrInvalidQuery)
	}

	queryVec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	k := limit * candidateFactor
	semCandidates, err := e.source.SemanticCandidates(ctx, queryVec, k, scope)
	if err != nil {
		return nil, fmt.Errorf("fetching semantic candidates: %w", err)
	}
	lexCandidates, err := e.source.LexicalCandidates(ctx, query, k, scope)
	if err != nil {
		return nil, fmt.Errorf("fetching lexical candidates: %w", err)
	}

	type entry struct {
		result   models.SearchResult
		semantic float64
		lexical  float64
	}
	union := make(map[uuid.UUID]*entry)
	for _, c := range semCandidates {
		union[c.ChunkID] = &entry{
			result:   toResult(c),
			semantic: cosineSimilarity(queryVec, c.Embedding),
		}
	}

	// Lexical scores are normalized by the best score across the whole
	// union so both terms of the weighted sum share the [0, 1] scale.
	maxLex := 0.0
	for _, c := range lexCandidates {
		score := lexicalScore(terms, c.Content)
		if score > maxLex {
			maxLex = score
		}
		if ex, ok := union[c.ChunkID]; ok {
			ex.lexical = score
		} else {
			union[c.ChunkID] = &entry{result: toResult(c), lexical: score}
		}
	}

	results := make([]models.SearchResult, 0, len(union))
	for _, ent := range union {
		lex := ent.lexical
		if maxLex > 0 {
			lex = lex / maxLex
		}
		r := ent.result
		r.SemanticScore = ent.semantic
		r.LexicalScore = lex
		r.Score = semanticWeight*ent.semantic + (1-semanticWeight)*lex
		results = append(results, r)
	}
	sortResults(results)
	return truncate(results, limit), nil
}

// DocumentContext returns all of a document's chunks in index order with
// a formatted text block for downstream consumption.
func (e *Engine) DocumentContext(ctx context.Context, docID uuid.UUID) (*models.DocumentContext, error) {
	doc, err := e.source.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	chunks, err := e.source.GetDocumentChunks(ctx, docID)
	if err != nil {
		return nil, err
	}

	blocks := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		header := "[" + ch.Source
		if ch.Heading != "" {
			header += " - " + ch.Heading
		}
		header += "]"
		blocks = append(blocks, header+"\n"+ch.Content)
	}

	return &models.DocumentContext{
		DocumentID:  doc.ID,
		Filename:    doc.Filename,
		FileType:    doc.FileType,
		Title:       doc.Title,
		Chunks:      chunks,
		ContextText: strings.Join(blocks, "\n\n"),
	}, nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors", len(vecs))
	}
	return vecs[0], nil
}

func validateQuery(query string, limit int) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: empty query", models.ErrInvalidQuery)
	}
	if limit < 1 {
		return fmt.Errorf("%w: limit %d", models.ErrInvalidQuery, limit)
	}
	return nil
}

func toResult(c store.Candidate) models.SearchResult {
	return models.SearchResult{
		ChunkID:    c.ChunkID,
		DocumentID: c.DocumentID,
		Filename:   c.Filename,
		FileType:   c.FileType,
		Content:    c.Content,
		Source:     c.Source,
		Heading:    c.Heading,
		PageNumber: c.PageNumber,
		ChunkIndex: c.ChunkIndex,
	}
}

// sortResults orders by score descending with deterministic tie-breaks:
// chunk index ascending, then chunk id.
func sortResults(results []models.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].ChunkIndex != results[j].ChunkIndex {
			return results[i].ChunkIndex < results[j].ChunkIndex
		}
		return results[i].ChunkID.String() < results[j].ChunkID.String()
	})
}

func normalizeScores(results []models.SearchResult) {
	max := 0.0
	for _, r := range results {
		if r.Score > max {
			max = r.Score
		}
	}
	if max <= 0 {
		return
	}
	for i := range results {
		results[i].Score /= max
	}
}

func truncate(results []models.SearchResult, limit int) []models.SearchResult {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
