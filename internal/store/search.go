package store

import (
	"context"

	"github.com/google/uuid"

	"docintel/internal/models"
)

// Candidate is a chunk surfaced by one of the index structures, carrying
// enough of the owning document for result assembly. Ranking happens in
// the retrieval engine, not here.
type Candidate struct {
	ChunkID    uuid.UUID       `bun:"chunk_id"`
	DocumentID uuid.UUID       `bun:"document_id"`
	ChunkIndex int             `bun:"chunk_index"`
	Content    string          `bun:"content"`
	Source     string          `bun:"source"`
	Heading    string          `bun:"heading"`
	PageNumber int             `bun:"page_number"`
	Filename   string          `bun:"filename"`
	FileType   models.FileType `bun:"file_type"`
	Embedding  []float32       `bun:"embedding,type:vector(384)"`
}

// SemanticCandidates returns the top-k nearest chunks to the query
// vector within the scope. Served from the warm in-process ANN cache
// when possible, otherwise from the pgvector index. The cache is
// per-process and best-effort: rows persisted by another process are not
// visible in it until the next WarmCache, only in the pgvector path.
func (s *Store) SemanticCandidates(ctx context.Context, queryVec []float32, k int, scope *uuid.UUID) ([]Candidate, error) {
	if s.cache != nil && s.cache.Warm() {
		candidates, err := s.cache.Query(ctx, queryVec, k, scope)
		if err == nil {
			return candidates, nil
		}
		s.log.Warn().Err(err).Msg("vector cache query failed, falling back to pgvector")
	}

	var rows []Candidate
	q := s.db.NewSelect().
		TableExpr("document_chunks AS c").
		Join("JOIN documents AS d ON d.id = c.document_id").
		ColumnExpr("c.id AS chunk_id, c.document_id, c.chunk_index, c.content").
		ColumnExpr("COALESCE(c.source, '') AS source, COALESCE(c.heading, '') AS heading").
		ColumnExpr("COALESCE(c.page_number, 0) AS page_number, c.embedding").
		ColumnExpr("d.filename, d.file_type")
	if scope != nil {
		q = q.Where("d.investigation_id = ?", *scope)
	}
	err := q.OrderExpr("c.embedding <=> ?", queryVec).
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LexicalCandidates returns up to k chunks whose indexed text matches
// the query, best full-text rank first. The engine re-scores them with
// its own term-frequency function; the rank order here only bounds the
// candidate set.
func (s *Store) LexicalCandidates(ctx context.Context, query string, k int, scope *uuid.UUID) ([]Candidate, error) {
	var rows []Candidate
	q := s.db.NewSelect().
		TableExpr("document_chunks AS c").
		Join("JOIN documents AS d ON d.id = c.document_id").
		ColumnExpr("c.id AS chunk_id, c.document_id, c.chunk_index, c.content").
		ColumnExpr("COALESCE(c.source, '') AS source, COALESCE(c.heading, '') AS heading").
		ColumnExpr("COALESCE(c.page_number, 0) AS page_number").
		ColumnExpr("d.filename, d.file_type").
		Where("to_tsvector('english', c.content) @@ websearch_to_tsquery('english', ?)", query)
	if scope != nil {
		q = q.Where("d.investigation_id = ?", *scope)
	}
	err := q.OrderExpr("ts_rank(to_tsvector('english', c.content), websearch_to_tsquery('english', ?)) DESC", query).
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
