package core

import (
	"context"

	"github.com/yuanqii/feishu-rag/internal/models"
)

// EmbeddingProvider turns texts into vectors for similarity search.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// MultimodalLLM completes a single-turn prompt made of ordered text and
// image parts.
type MultimodalLLM interface {
	Complete(ctx context.Context, parts []models.PromptPart) (string, error)
}

// VectorStore abstracts the persisted knowledge base so pipeline logic
// never depends on a specific backend.
type VectorStore interface {
	AddDocuments(ctx context.Context, docs []models.Document) error
	SimilaritySearch(ctx context.Context, query string, k int) ([]models.Document, error)
	Close() error
}

// Partitioner extracts ordered structural elements from a source file.
type Partitioner interface {
	Partition(ctx context.Context, path string) ([]models.Element, error)
}

// Messenger covers the messaging-platform operations the answer path
// needs: media upload and posting a reply card.
type Messenger interface {
	UploadImage(ctx context.Context, imageB64 string) (string, error)
	Reply(ctx context.Context, messageID string, card []byte) error
}

// Answerer produces an answer for one user query. Implementations never
// return an error; every failure degrades into a canned answer.
type Answerer interface {
	GetAnswer(ctx context.Context, query string) models.Answer
}

// ObjectClient defines interactions with object storage for archive
// uploads. Abstract so AWS can be replaced with MinIO etc. without
// touching the exporter.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
}
