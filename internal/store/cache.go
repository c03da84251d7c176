package store

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"docintel/internal/models"
)

// VectorCache mirrors chunk embeddings in an in-process chromem-go
// collection so hot queries skip the database round trip. Entries are
// added when a document commits and evicted when it is deleted; the
// database remains the source of truth.
type VectorCache struct {
	db         *chromem.DB
	collection *chromem.Collection
}

func NewVectorCache(dir, collectionName string) (*VectorCache, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("opening vector cache: %w", err)
	}
	c, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("opening cache collection: %w", err)
	}
	return &VectorCache{db: db, collection: c}, nil
}

// NewMemoryVectorCache builds a non-persistent cache.
func NewMemoryVectorCache(collectionName string) (*VectorCache, error) {
	db := chromem.NewDB()
	c, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("opening cache collection: %w", err)
	}
	return &VectorCache{db: db, collection: c}, nil
}

func (v *VectorCache) Warm() bool { return v.collection.Count() > 0 }

func (v *VectorCache) AddChunks(ctx context.Context, doc *models.Document, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	scope := ""
	if doc.InvestigationID != nil {
		scope = doc.InvestigationID.String()
	}
	docs := make([]chromem.Document, 0, len(chunks))
	for _, ch := range chunks {
		docs = append(docs, chromem.Document{
			ID:        ch.ID.String(),
			Content:   ch.Content,
			Embedding: ch.Embedding,
			Metadata: map[string]string{
				"document_id":      doc.ID.String(),
				"investigation_id": scope,
				"filename":         doc.Filename,
				"file_type":        string(doc.FileType),
				"source":           ch.Source,
				"heading":          ch.Heading,
				"page_number":      strconv.Itoa(ch.PageNumber),
				"chunk_index":      strconv.Itoa(ch.ChunkIndex),
			},
		})
	}
	return v.collection.AddDocuments(ctx, docs, runtime.NumCPU())
}

func (v *VectorCache) EvictChunks(ctx context.Context, chunkIDs []uuid.UUID) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	ids := make([]string, len(chunkIDs))
	for i, id := range chunkIDs {
		ids[i] = id.String()
	}
	return v.collection.Delete(ctx, nil, nil, ids...)
}

func (v *VectorCache) Query(ctx context.Context, queryVec []float32, k int, scope *uuid.UUID) ([]Candidate, error) {
	var where map[string]string
	if scope != nil {
		where = map[string]string{"investigation_id": scope.String()}
	}
	n := k
	if count := v.collection.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}
	results, err := v.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryVec,
		NResults:       n,
		Where:          where,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		chunkID, err := uuid.Parse(r.ID)
		if err != nil {
			continue
		}
		docID, _ := uuid.Parse(r.Metadata["document_id"])
		page, _ := strconv.Atoi(r.Metadata["page_number"])
		idx, _ := strconv.Atoi(r.Metadata["chunk_index"])
		candidates = append(candidates, Candidate{
			ChunkID:    chunkID,
			DocumentID: docID,
			ChunkIndex: idx,
			Content:    r.Content,
			Source:     r.Metadata["source"],
			Heading:    r.Metadata["heading"],
			PageNumber: page,
			Filename:   r.Metadata["filename"],
			FileType:   models.FileType(r.Metadata["file_type"]),
			Embedding:  r.Embedding,
		})
	}
	return candidates, nil
}
