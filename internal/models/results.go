package models

import "github.com/google/uuid"

// Stage is a step of the ingestion pipeline.
type Stage string

const (
	StageReceived  Stage = "received"
	StageHashed    Stage = "hashed"
	StageParsing   Stage = "parsing"
	StageChunking  Stage = "chunking"
	StageEmbedding Stage = "embedding"
	StagePersisted Stage = "persisted"
)

// IngestStatus is the terminal outcome of one file's ingestion.
type IngestStatus string

const (
	IngestPersisted IngestStatus = "persisted"
	IngestDuplicate IngestStatus = "duplicate"
	IngestFailed    IngestStatus = "failed"
)

// IngestResult reports one file's outcome. For IngestFailed, FailedStage
// and Reason identify where and why the pipeline stopped.
type IngestResult struct {
	DocumentID  uuid.UUID
	Filename    string
	ChunkCount  int
	Status      IngestStatus
	FailedStage Stage
	Reason      string
}

// SearchResult is one ranked chunk from any of the retrieval operations.
// Score is cosine similarity for semantic search, the normalized lexical
// score for lexical search, and the weighted combination for hybrid
// search; all in [0, 1].
type SearchResult struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	Filename   string
	FileType   FileType
	Content    string
	Source     string
	Heading    string
	PageNumber int
	ChunkIndex int
	Score      float64

	// Populated by hybrid search only.
	SemanticScore float64
	LexicalScore  float64
}

// DocumentContext is a document's full chunk set in order, with a
// formatted text block for downstream consumption.
type DocumentContext struct {
	DocumentID  uuid.UUID
	Filename    string
	FileType    FileType
	Title       string
	Chunks      []Chunk
	ContextText string
}
