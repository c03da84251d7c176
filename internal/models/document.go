package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EmbeddingDim is the vector size produced by the embedding model. The
// vector column and the ANN index are created with this dimension, so
// changing it requires reindexing.
const EmbeddingDim = 384

// Document is a stored file with its extracted text and metadata.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID       uuid.UUID `bun:"id,pk,type:uuid"`
	Filename string    `bun:"filename,notnull"`
	FileType FileType  `bun:"file_type,notnull"`
	FileSize int64     `bun:"file_size,notnull"`
	FileHash string    `bun:"file_hash,notnull"`
	BlobKey  string    `bun:"blob_key,nullzero"`

	Title   string `bun:"title,nullzero"`
	Author  string `bun:"author,nullzero"`
	Subject string `bun:"subject,nullzero"`

	PageCount  int `bun:"page_count,nullzero"`
	WordCount  int `bun:"word_count,nullzero"`
	SlideCount int `bun:"slide_count,nullzero"`
	SheetCount int `bun:"sheet_count,nullzero"`

	InvestigationID *uuid.UUID `bun:"investigation_id,type:uuid,nullzero"`
	FullText        string     `bun:"full_text,nullzero"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Chunk is a bounded span of a document's text with its embedding.
// (document_id, chunk_index) is unique; the embedding is written once at
// ingestion and never partially updated.
type Chunk struct {
	bun.BaseModel `bun:"table:document_chunks,alias:c"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	DocumentID uuid.UUID `bun:"document_id,notnull,type:uuid"`
	ChunkIndex int       `bun:"chunk_index,notnull"`
	Content    string    `bun:"content,notnull"`
	Source     string    `bun:"source,nullzero"`
	Heading    string    `bun:"heading,nullzero"`
	PageNumber int       `bun:"page_number,nullzero"`
	CharCount  int       `bun:"char_count,notnull"`
	Embedding  []float32 `bun:"embedding,notnull,type:vector(384)"`
}

// DocumentTable is a table extracted during parsing. Read-only after
// creation; not used in ranking.
type DocumentTable struct {
	bun.BaseModel `bun:"table:document_tables,alias:dt"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	DocumentID  uuid.UUID  `bun:"document_id,notnull,type:uuid"`
	Source      string     `bun:"source,nullzero"`
	TableIndex  int        `bun:"table_index,notnull"`
	Headers     []string   `bun:"headers,type:jsonb,nullzero"`
	Rows        [][]string `bun:"rows,type:jsonb"`
	RowCount    int        `bun:"row_count,notnull"`
	ColumnCount int        `bun:"column_count,notnull"`
}

// DocumentLink is a URL extracted during parsing.
type DocumentLink struct {
	bun.BaseModel `bun:"table:document_links,alias:dl"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	DocumentID uuid.UUID `bun:"document_id,notnull,type:uuid"`
	URL        string    `bun:"url,notnull"`
	Source     string    `bun:"source,nullzero"`
}

// Metadata carries what the parser could extract about a file.
type Metadata struct {
	Title      string
	Author     string
	Subject    string
	PageCount  int
	WordCount  int
	SlideCount int
	SheetCount int
}

// Section is a structural unit of extracted text (a page, slide, sheet or
// the whole body for flat formats) before chunking.
type Section struct {
	Text       string
	Source     string
	Heading    string
	PageNumber int
}

// TextChunk is the chunker's output: a span of text carrying the
// provenance of the section it was drawn from.
type TextChunk struct {
	Index      int
	Content    string
	Source     string
	Heading    string
	PageNumber int
}

// TableData is an extraction artifact before persistence.
type TableData struct {
	Source string
	Rows   [][]string
}
