package ingestion_engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yuanqii/feishu-rag/internal/core"
	"github.com/yuanqii/feishu-rag/internal/models"
)

// VectorWriter persists documents into the vector store in fixed-size
// batches, throttled to stay under the embedding provider's rate limits.
type VectorWriter struct {
	store     core.VectorStore
	batchSize int
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewVectorWriter builds a writer with the given batch size and minimum
// interval between batch writes. interval <= 0 disables throttling.
func NewVectorWriter(store core.VectorStore, batchSize int, interval time.Duration, logger *zap.Logger) *VectorWriter {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &VectorWriter{
		store:     store,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		logger:    logger,
	}
}

// WriteAll writes documents batch by batch in their original order. A
// failing batch is logged and skipped; the remaining batches are still
// attempted, so the result is at-least-effort rather than all-or-nothing.
// Returns the number of documents actually stored.
func (w *VectorWriter) WriteAll(ctx context.Context, docs []models.Document) (int, error) {
	total := (len(docs) + w.batchSize - 1) / w.batchSize
	w.logger.Info("writing documents to vector store",
		zap.Int("documents", len(docs)), zap.Int("batches", total))

	stored := 0
	for i := 0; i < len(docs); i += w.batchSize {
		end := i + w.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[i:end]
		batchNum := i/w.batchSize + 1

		if err := w.limiter.Wait(ctx); err != nil {
			return stored, err
		}

		if err := w.store.AddDocuments(ctx, batch); err != nil {
			w.logger.Error("batch failed, skipping",
				zap.Int("batch", batchNum), zap.Int("size", len(batch)), zap.Error(err))
			continue
		}

		stored += len(batch)
		w.logger.Info("batch stored", zap.Int("batch", batchNum), zap.Int("total", total))
	}

	w.logger.Info("vector store write complete",
		zap.Int("stored", stored), zap.Int("lost", len(docs)-stored))
	return stored, nil
}
