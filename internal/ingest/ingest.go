package ingest

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"docintel/internal/blob"
	"docintel/internal/chunker"
	"docintel/internal/embedding"
	"docintel/internal/hasher"
	"docintel/internal/models"
	"docintel/internal/parser"
)

// ParseFunc extracts content from raw bytes; parser.Parse in production.
type ParseFunc func(data []byte, filename string, declaredType models.FileType) (*parser.Result, error)

// DocumentStore is the slice of the store the pipeline writes through.
type DocumentStore interface {
	FindByHash(ctx context.Context, hash string, scope *uuid.UUID) (*models.Document, error)
	CreateDocument(ctx context.Context, doc *models.Document, chunks []models.Chunk, tables []models.DocumentTable, links []models.DocumentLink) error
	GetDocumentChunks(ctx context.Context, docID uuid.UUID) ([]models.Chunk, error)
}

// Options carry the pipeline defaults; per-request chunk parameters
// override the chunking pair.
type Options struct {
	ChunkSize        int
	ChunkOverlap     int
	EmbedConcurrency int
	EmbedBatchSize   int
	EmbedMaxRetries  int
}

// Request is one file to ingest.
type Request struct {
	Data            []byte
	Filename        string
	DeclaredType    models.FileType
	InvestigationID *uuid.UUID
	ChunkSize       int
	ChunkOverlap    int
}

// Pipeline drives one file through
// Received → Hashed → (Duplicate | Parsing) → Chunking → Embedding → Persisted,
// with Failed reachable from any non-terminal stage. A document and its
// chunks become visible atomically or not at all.
type Pipeline struct {
	parse    ParseFunc
	embedder embedding.Embedder
	store    DocumentStore
	blobs    blob.Store
	opts     Options
	log      zerolog.Logger
}

func New(parse ParseFunc, embedder embedding.Embedder, store DocumentStore, blobs blob.Store, opts Options, log zerolog.Logger) *Pipeline {
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = 4
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 32
	}
	if opts.EmbedMaxRetries <= 0 {
		opts.EmbedMaxRetries = 3
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.ChunkOverlap <= 0 {
		opts.ChunkOverlap = 200
	}
	return &Pipeline{
		parse:    parse,
		embedder: embedding.NewRetrying(embedder, opts.EmbedMaxRetries),
		store:    store,
		blobs:    blobs,
		opts:     opts,
		log:      log,
	}
}

// Ingest runs one file through the pipeline. The returned error is
// non-nil only for failures that must stop ingestion system-wide
// (dimension mismatch); everything else is reported in the result.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (models.IngestResult, error) {
	if err := ctx.Err(); err != nil {
		return failed(req.Filename, models.StageReceived, err), nil
	}
	if len(req.Data) == 0 {
		return failed(req.Filename, models.StageReceived, errors.New("empty file")), nil
	}

	// Received → Hashed. Pure; cannot fail.
	hash := hasher.Hash(req.Data)

	// Hashed → Duplicate: identical bytes in the same scope short-circuit
	// without reparsing or re-embedding.
	if existing, err := p.store.FindByHash(ctx, hash, req.InvestigationID); err == nil {
		return p.duplicate(ctx, req.Filename, existing), nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return failed(req.Filename, models.StageHashed, err), nil
	}

	// Hashed → Parsing.
	parsed, err := p.parse(req.Data, req.Filename, req.DeclaredType)
	if err != nil {
		return failed(req.Filename, models.StageParsing, err), nil
	}

	if err := ctx.Err(); err != nil {
		return failed(req.Filename, models.StageParsing, err), nil
	}

	// Parsing → Chunking. Pipeline defaults apply only when the request
	// leaves the chunk size unset.
	size, overlap := req.ChunkSize, req.ChunkOverlap
	if size <= 0 {
		size, overlap = p.opts.ChunkSize, p.opts.ChunkOverlap
	}
	ck, err := chunker.New(chunker.Config{Size: size, Overlap: overlap})
	if err != nil {
		return failed(req.Filename, models.StageChunking, err), nil
	}
	textChunks := ck.Split(parsed.Sections)
	if len(textChunks) == 0 {
		return failed(req.Filename, models.StageChunking, errors.New("no text content extracted")), nil
	}

	if err := ctx.Err(); err != nil {
		return failed(req.Filename, models.StageChunking, err), nil
	}

	// Chunking → Embedding. All chunks must embed or the file fails; a
	// partially embedded document never reaches the store.
	vectors, err := p.embedChunks(ctx, textChunks)
	if err != nil {
		if errors.Is(err, models.ErrDimensionMismatch) {
			return failed(req.Filename, models.StageEmbedding, err), err
		}
		return failed(req.Filename, models.StageEmbedding, err), nil
	}

	// Blob upload is best-effort: the extracted content is already in
	// hand and the original can be re-uploaded.
	blobKey := ""
	if p.blobs != nil {
		key, err := p.blobs.Put(ctx, req.Data, req.Filename)
		if err != nil {
			p.log.Warn().Err(err).Str("filename", req.Filename).Msg("blob upload failed")
		} else {
			blobKey = key
		}
	}

	// Embedding → Persisted: one transaction. Once this starts it runs
	// to completion or fails entirely; cancellation no longer applies.
	doc, chunks, tables, links := p.assemble(req, hash, blobKey, parsed, textChunks, vectors)
	if err := p.store.CreateDocument(ctx, doc, chunks, tables, links); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			// Lost a concurrent race for the same (hash, scope); the
			// surviving row is the outcome.
			if existing, ferr := p.store.FindByHash(ctx, hash, req.InvestigationID); ferr == nil {
				return p.duplicate(ctx, req.Filename, existing), nil
			}
			return failed(req.Filename, models.StagePersisted, err), nil
		}
		return failed(req.Filename, models.StagePersisted, err), nil
	}

	p.log.Info().
		Str("filename", req.Filename).
		Str("document_id", doc.ID.String()).
		Int("chunks", len(chunks)).
		Msg("document persisted")

	return models.IngestResult{
		DocumentID: doc.ID,
		Filename:   req.Filename,
		ChunkCount: len(chunks),
		Status:     models.IngestPersisted,
	}, nil
}

// IngestAll processes a batch with independent per-file outcomes. Only a
// fatal configuration error (dimension mismatch) aborts the remainder.
func (p *Pipeline) IngestAll(ctx context.Context, reqs []Request) []models.IngestResult {
	results := make([]models.IngestResult, 0, len(reqs))
	for _, req := range reqs {
		res, fatal := p.Ingest(ctx, req)
		results = append(results, res)
		if fatal != nil {
			p.log.Error().Err(fatal).Msg("stopping batch: embedding index configuration is inconsistent")
			break
		}
	}
	return results
}

func (p *Pipeline) embedChunks(ctx context.Context, chunks []models.TextChunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.EmbedConcurrency)

	for start := 0; start < len(chunks); start += p.opts.EmbedBatchSize {
		end := start + p.opts.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		start, end := start, end
		g.Go(func() error {
			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = chunks[i].Content
			}
			vecs, err := p.embedder.Embed(gctx, texts)
			if err != nil {
				return err
			}
			for i, v := range vecs {
				vectors[start+i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (p *Pipeline) assemble(
	req Request,
	hash, blobKey string,
	parsed *parser.Result,
	textChunks []models.TextChunk,
	vectors [][]float32,
) (*models.Document, []models.Chunk, []models.DocumentTable, []models.DocumentLink) {
	ft := req.DeclaredType
	if ft == "" || ft == models.FileTypeUnknown {
		ft = models.DetectFileType(req.Filename)
	}
	doc := &models.Document{
		ID:              uuid.New(),
		Filename:        req.Filename,
		FileType:        ft,
		FileSize:        int64(len(req.Data)),
		FileHash:        hash,
		BlobKey:         blobKey,
		Title:           parsed.Metadata.Title,
		Author:          parsed.Metadata.Author,
		Subject:         parsed.Metadata.Subject,
		PageCount:       parsed.Metadata.PageCount,
		WordCount:       parsed.Metadata.WordCount,
		SlideCount:      parsed.Metadata.SlideCount,
		SheetCount:      parsed.Metadata.SheetCount,
		InvestigationID: req.InvestigationID,
		FullText:        parsed.FullText,
	}

	chunks := make([]models.Chunk, len(textChunks))
	for i, tc := range textChunks {
		chunks[i] = models.Chunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			ChunkIndex: tc.Index,
			Content:    tc.Content,
			Source:     tc.Source,
			Heading:    tc.Heading,
			PageNumber: tc.PageNumber,
			CharCount:  len(tc.Content),
			Embedding:  vectors[i],
		}
	}

	tables := make([]models.DocumentTable, 0, len(parsed.Tables))
	for i, t := range parsed.Tables {
		var headers []string
		if len(t.Rows) > 0 {
			headers = t.Rows[0]
		}
		cols := 0
		if len(t.Rows) > 0 {
			cols = len(t.Rows[0])
		}
		tables = append(tables, models.DocumentTable{
			ID:          uuid.New(),
			DocumentID:  doc.ID,
			Source:      t.Source,
			TableIndex:  i,
			Headers:     headers,
			Rows:        t.Rows,
			RowCount:    len(t.Rows),
			ColumnCount: cols,
		})
	}

	links := make([]models.DocumentLink, 0, len(parsed.Links))
	for _, url := range parsed.Links {
		links = append(links, models.DocumentLink{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			URL:        url,
		})
	}
	return doc, chunks, tables, links
}

func (p *Pipeline) duplicate(ctx context.Context, filename string, existing *models.Document) models.IngestResult {
	count := 0
	if chunks, err := p.store.GetDocumentChunks(ctx, existing.ID); err == nil {
		count = len(chunks)
	}
	p.log.Info().
		Str("filename", filename).
		Str("document_id", existing.ID.String()).
		Msg("duplicate content, reusing existing document")
	return models.IngestResult{
		DocumentID: existing.ID,
		Filename:   filename,
		ChunkCount: count,
		Status:     models.IngestDuplicate,
	}
}

func failed(filename string, stage models.Stage, err error) models.IngestResult {
	return models.IngestResult{
		Filename:    filename,
		Status:      models.IngestFailed,
		FailedStage: stage,
		Reason:      err.Error(),
	}
}
