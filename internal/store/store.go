package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docintel/internal/config"
	"docintel/internal/models"
)

// Store owns document persistence and the index invariants: the unique
// (hash, scope) constraint, the (document_id, chunk_index) constraint,
// the ANN index and the lexical index.
type Store struct {
	db    *bun.DB
	cache *VectorCache
	log   zerolog.Logger
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.URL)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

func New(sqldb *sql.DB, cache *VectorCache, debug bool, log zerolog.Logger) *Store {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db, cache: cache, log: log}
}

func (s *Store) Close() error { return s.db.Close() }

// Init creates the schema and the three index structures. Idempotent.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}

	if _, err := s.db.NewCreateTable().Model((*models.Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	for _, model := range []any{(*models.Chunk)(nil), (*models.DocumentTable)(nil), (*models.DocumentLink)(nil)} {
		q := s.db.NewCreateTable().Model(model).IfNotExists().
			ForeignKey(`("document_id") REFERENCES "documents" ("id") ON DELETE CASCADE`)
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}

	// NULL investigation ids collapse to the zero uuid so the global
	// library dedups too; this index is what makes concurrent identical
	// uploads race-safe.
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS documents_hash_scope_uniq
		 ON documents (file_hash, COALESCE(investigation_id, '00000000-0000-0000-0000-000000000000'::uuid))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS document_chunks_doc_index_uniq
		 ON document_chunks (document_id, chunk_index)`,
		`CREATE INDEX IF NOT EXISTS document_chunks_embedding_idx
		 ON document_chunks USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS document_chunks_content_fts_idx
		 ON document_chunks USING gin (to_tsvector('english', content))`,
		`CREATE INDEX IF NOT EXISTS documents_investigation_idx
		 ON documents (investigation_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

// FindByHash returns the existing document for (hash, scope), or
// ErrNotFound. A nil scope matches only unscoped documents.
func (s *Store) FindByHash(ctx context.Context, hash string, scope *uuid.UUID) (*models.Document, error) {
	doc := new(models.Document)
	q := s.db.NewSelect().Model(doc).Where("file_hash = ?", hash)
	if scope != nil {
		q = q.Where("investigation_id = ?", *scope)
	} else {
		q = q.Where("investigation_id IS NULL")
	}
	err := q.Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateDocument persists a document with all its chunks, tables and
// links in one transaction: readers either see the complete chunk set or
// nothing. A unique violation on the (hash, scope) index is reported as
// ErrDuplicate so the loser of a concurrent identical upload can resolve
// the surviving row.
func (s *Store) CreateDocument(
	ctx context.Context,
	doc *models.Document,
	chunks []models.Chunk,
	tables []models.DocumentTable,
	links []models.DocumentLink,
) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(doc).Exec(ctx); err != nil {
			return err
		}
		if len(chunks) > 0 {
			if _, err := tx.NewInsert().Model(&chunks).Exec(ctx); err != nil {
				return err
			}
		}
		if len(tables) > 0 {
			if _, err := tx.NewInsert().Model(&tables).Exec(ctx); err != nil {
				return err
			}
		}
		if len(links) > 0 {
			if _, err := tx.NewInsert().Model(&links).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: hash %s", models.ErrDuplicate, doc.FileHash)
		}
		return err
	}

	if s.cache != nil {
		if err := s.cache.AddChunks(ctx, doc, chunks); err != nil {
			// The database row is the source of truth; a cold cache only
			// costs the next query a pgvector round trip.
			s.log.Warn().Err(err).Str("document_id", doc.ID.String()).Msg("vector cache add failed")
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgdErr pgdriver.Error
	if errors.As(err, &pgdErr) {
		return pgdErr.Field('C') == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// WarmCache fills an empty vector cache from the database so semantic
// queries can skip the pgvector round trip after a restart. No-op when
// the cache is absent or already populated.
func (s *Store) WarmCache(ctx context.Context) error {
	if s.cache == nil || s.cache.Warm() {
		return nil
	}
	var docs []models.Document
	if err := s.db.NewSelect().Model(&docs).Scan(ctx); err != nil {
		return err
	}
	for i := range docs {
		chunks, err := s.GetDocumentChunks(ctx, docs[i].ID)
		if err != nil {
			return err
		}
		if err := s.cache.AddChunks(ctx, &docs[i], chunks); err != nil {
			return err
		}
	}
	return nil
}

// GetDocument fetches document metadata by id.
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc := new(models.Document)
	err := s.db.NewSelect().Model(doc).Where("d.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocumentChunks returns all chunks of a document ordered by index.
func (s *Store) GetDocumentChunks(ctx context.Context, docID uuid.UUID) ([]models.Chunk, error) {
	var chunks []models.Chunk
	err := s.db.NewSelect().Model(&chunks).
		Where("document_id = ?", docID).
		Order("chunk_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// ListFilter narrows ListDocuments.
type ListFilter struct {
	InvestigationID *uuid.UUID
	FileType        models.FileType
	Limit           int
	Offset          int
}

func (s *Store) ListDocuments(ctx context.Context, filter ListFilter) ([]models.Document, error) {
	var docs []models.Document
	q := s.db.NewSelect().Model(&docs)
	if filter.InvestigationID != nil {
		q = q.Where("investigation_id = ?", *filter.InvestigationID)
	}
	if filter.FileType != "" {
		q = q.Where("file_type = ?", filter.FileType)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	err := q.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// DeleteDocument removes a document; the foreign keys cascade to chunks,
// tables and links, and the vector cache entries for its chunks are
// evicted. Returns ErrNotFound for unknown ids.
func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	var chunkIDs []uuid.UUID
	err := s.db.NewSelect().Model((*models.Chunk)(nil)).
		Column("id").
		Where("document_id = ?", id).
		Scan(ctx, &chunkIDs)
	if err != nil {
		return err
	}

	res, err := s.db.NewDelete().Model((*models.Document)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}

	if s.cache != nil {
		if err := s.cache.EvictChunks(ctx, chunkIDs); err != nil {
			s.log.Warn().Err(err).Str("document_id", id.String()).Msg("vector cache evict failed")
		}
	}
	return nil
}
