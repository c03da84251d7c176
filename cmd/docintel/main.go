package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docintel/internal/blob"
	"docintel/internal/config"
	"docintel/internal/embedding"
	"docintel/internal/ingest"
	"docintel/internal/models"
	"docintel/internal/parser"
	"docintel/internal/retrieval"
	"docintel/internal/store"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	filePath := flag.String("file", "", "Path to a document file to ingest")
	investigation := flag.String("investigation", "", "Investigation id to scope the operation to")
	chunkSize := flag.Int("chunk-size", 0, "Max characters per chunk (default from config)")
	chunkOverlap := flag.Int("chunk-overlap", 0, "Character overlap between chunks")
	query := flag.String("query", "", "Search query")
	mode := flag.String("mode", "semantic", "Search mode: semantic, lexical or hybrid")
	limit := flag.Int("limit", 0, "Max results (default from config)")
	contextID := flag.String("context", "", "Document id to print ordered chunks for")
	deleteID := flag.String("delete", "", "Document id to delete")
	list := flag.Bool("list", false, "List stored documents")
	initSchema := flag.Bool("init", false, "Create tables and indexes, then exit")
	debugLog := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugLog {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()
	app, err := buildApp(ctx, cfg, *initSchema)
	if err != nil {
		log.Fatal().Err(err).Msg("Error wiring application")
	}
	defer app.store.Close()

	scope, err := parseScope(*investigation)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid investigation id")
	}

	switch {
	case *initSchema:
		log.Info().Msg("Schema initialized")
	case *filePath != "":
		ingestFile(ctx, app, *filePath, scope, *chunkSize, *chunkOverlap)
	case *query != "":
		search(ctx, app, cfg, *query, *mode, *limit, scope)
	case *contextID != "":
		printContext(ctx, app, *contextID)
	case *deleteID != "":
		deleteDocument(ctx, app, *deleteID)
	case *list:
		listDocuments(ctx, app, scope)
	default:
		log.Fatal().Msg("Provide one of -file, -query, -context, -delete, -list or -init")
	}
}

type app struct {
	store    *store.Store
	pipeline *ingest.Pipeline
	engine   *retrieval.Engine
}

func buildApp(ctx context.Context, cfg *config.Config, initSchema bool) (*app, error) {
	dbClient, err := store.ConnectDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	var cache *store.VectorCache
	if cfg.Cache.Dir != "" {
		cache, err = store.NewVectorCache(cfg.Cache.Dir, cfg.Cache.Collection)
		if err != nil {
			log.Warn().Err(err).Msg("Vector cache unavailable, queries fall back to pgvector")
		}
	}

	st := store.New(dbClient, cache, cfg.Database.Debug, log.Logger)
	if initSchema {
		if err := st.Init(ctx); err != nil {
			return nil, fmt.Errorf("initializing schema: %w", err)
		}
	}
	if cache != nil {
		if err := st.WarmCache(ctx); err != nil {
			log.Warn().Err(err).Msg("Vector cache warmup failed")
		}
	}

	embedder, err := embedding.NewEmbedder(&cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("initializing embedder: %w", err)
	}

	blobs, err := blob.NewFSStore(cfg.Blob.Dir)
	if err != nil {
		return nil, fmt.Errorf("initializing blob store: %w", err)
	}

	pipeline := ingest.New(parser.Parse, embedder, st, blobs, ingest.Options{
		ChunkSize:        cfg.RAG.ChunkSize,
		ChunkOverlap:     cfg.RAG.ChunkOverlap,
		EmbedConcurrency: cfg.Embedder.Concurrency,
		EmbedBatchSize:   cfg.Embedder.BatchSize,
		EmbedMaxRetries:  cfg.Embedder.MaxRetries,
	}, log.Logger)

	engine := retrieval.NewEngine(st, embedding.NewRetrying(embedder, cfg.Embedder.MaxRetries), log.Logger)

	return &app{store: st, pipeline: pipeline, engine: engine}, nil
}

func parseScope(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func ingestFile(ctx context.Context, app *app, path string, scope *uuid.UUID, chunkSize, chunkOverlap int) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading file")
	}

	res, fatal := app.pipeline.Ingest(ctx, ingest.Request{
		Data:            data,
		Filename:        filepath.Base(path),
		InvestigationID: scope,
		ChunkSize:       chunkSize,
		ChunkOverlap:    chunkOverlap,
	})
	if fatal != nil {
		log.Fatal().Err(fatal).Msg("Ingestion stopped: index configuration is inconsistent")
	}

	switch res.Status {
	case models.IngestPersisted:
		fmt.Printf("persisted %s as %s (%d chunks)\n", res.Filename, res.DocumentID, res.ChunkCount)
	case models.IngestDuplicate:
		fmt.Printf("already indexed: %s is %s (%d chunks)\n", res.Filename, res.DocumentID, res.ChunkCount)
	default:
		fmt.Printf("failed at %s: %s\n", res.FailedStage, res.Reason)
	}
}

func search(ctx context.Context, app *app, cfg *config.Config, query, mode string, limit int, scope *uuid.UUID) {
	if limit <= 0 {
		limit = cfg.Search.Limit
	}

	var (
		results []models.SearchResult
		err     error
	)
	switch mode {
	case "semantic":
		results, err = app.engine.SemanticSearch(ctx, query, cfg.Search.Threshold, limit, scope)
	case "lexical":
		results, err = app.engine.LexicalSearch(ctx, query, limit, scope)
	case "hybrid":
		results, err = app.engine.HybridSearch(ctx, query, cfg.Search.SemanticWeight, limit, scope)
	default:
		log.Fatal().Str("mode", mode).Msg("Unknown search mode")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Search failed")
	}

	for i, r := range results {
		fmt.Printf("%2d. %.4f  %s [%s]\n", i+1, r.Score, r.Filename, r.Source)
		fmt.Printf("    %s\n", snippet(r.Content, 160))
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}
}

func printContext(ctx context.Context, app *app, id string) {
	docID, err := uuid.Parse(id)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid document id")
	}
	dc, err := app.engine.DocumentContext(ctx, docID)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading document context")
	}
	fmt.Printf("%s (%s, %d chunks)\n\n%s\n", dc.Filename, dc.FileType, len(dc.Chunks), dc.ContextText)
}

func deleteDocument(ctx context.Context, app *app, id string) {
	docID, err := uuid.Parse(id)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid document id")
	}
	if err := app.store.DeleteDocument(ctx, docID); err != nil {
		log.Fatal().Err(err).Msg("Delete failed")
	}
	fmt.Printf("deleted %s\n", docID)
}

func listDocuments(ctx context.Context, app *app, scope *uuid.UUID) {
	docs, err := app.store.ListDocuments(ctx, store.ListFilter{InvestigationID: scope})
	if err != nil {
		log.Fatal().Err(err).Msg("List failed")
	}
	for _, d := range docs {
		fmt.Printf("%s  %-8s %8d bytes  %s\n", d.ID, d.FileType, d.FileSize, d.Filename)
	}
}

func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
