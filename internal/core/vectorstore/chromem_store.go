package vectorstore

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"

	"github.com/yuanqii/feishu-rag/internal/core"
	"github.com/yuanqii/feishu-rag/internal/models"
)

const (
	metaOriginalContent = "original_content"
	metaCategory        = "category"
)

// ChromemStore persists the knowledge base in an embedded chromem-go
// database on local disk. This is the default backend: it needs no
// external service and matches the original on-disk layout of one
// directory per collection.
type ChromemStore struct {
	db  *chromem.DB
	col *chromem.Collection
}

// NewChromemStore opens (or creates) the persistent database under path.
// Embeddings are produced by the given provider; similarity is cosine.
func NewChromemStore(path, collection string, emb core.EmbeddingProvider) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}

	embedOne := func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := emb.EmbedTexts(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("embedder returned no vector")
		}
		return vecs[0], nil
	}

	col, err := db.GetOrCreateCollection(collection, map[string]string{"hnsw:space": "cosine"}, embedOne)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", collection, err)
	}
	return &ChromemStore{db: db, col: col}, nil
}

func (s *ChromemStore) AddDocuments(ctx context.Context, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	out := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		original, err := d.Original.Serialize()
		if err != nil {
			return fmt.Errorf("serialize original content: %w", err)
		}
		out = append(out, chromem.Document{
			ID:      d.ID,
			Content: d.PageContent,
			Metadata: map[string]string{
				metaOriginalContent: original,
				metaCategory:        d.Category,
			},
		})
	}
	return s.col.AddDocuments(ctx, out, runtime.NumCPU())
}

func (s *ChromemStore) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Document, error) {
	// chromem rejects nResults above the collection size.
	if n := s.col.Count(); n < k {
		k = n
	}
	if k == 0 {
		return nil, nil
	}

	results, err := s.col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	docs := make([]models.Document, 0, len(results))
	for _, r := range results {
		doc := models.Document{
			ID:          r.ID,
			PageContent: r.Content,
			Category:    r.Metadata[metaCategory],
		}
		if raw, ok := r.Metadata[metaOriginalContent]; ok {
			if original, err := models.ParseOriginalContent(raw); err == nil {
				doc.Original = original
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *ChromemStore) Close() error { return nil }

var _ core.VectorStore = (*ChromemStore)(nil)
