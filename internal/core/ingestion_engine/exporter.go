package ingestion_engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/yuanqii/feishu-rag/internal/core"
	"github.com/yuanqii/feishu-rag/internal/models"
)

// exportRecord is one entry of the JSON archive.
type exportRecord struct {
	ChunkID         int            `json:"chunk_id"`
	EnhancedContent string         `json:"enhanced_content"`
	Metadata        exportMetadata `json:"metadata"`
}

type exportMetadata struct {
	OriginalContent models.OriginalContent `json:"original_content"`
	Category        string                 `json:"category"`
}

// Exporter writes the processed documents to a human-readable JSON archive
// for inspection, and optionally uploads the archive to object storage.
type Exporter struct {
	objects core.ObjectClient // nil disables upload
	bucket  string
	logger  *zap.Logger
}

func NewExporter(objects core.ObjectClient, bucket string, logger *zap.Logger) *Exporter {
	return &Exporter{objects: objects, bucket: bucket, logger: logger}
}

// Export serializes the documents with 1-based chunk IDs, two-space
// indentation and non-ASCII characters preserved literally.
func (e *Exporter) Export(ctx context.Context, docs []models.Document, path string) error {
	records := make([]exportRecord, 0, len(docs))
	for i, d := range docs {
		records = append(records, exportRecord{
			ChunkID:         i + 1,
			EnhancedContent: d.PageContent,
			Metadata: exportMetadata{
				OriginalContent: d.Original,
				Category:        categoryOrUnknown(d.Category),
			},
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	e.logger.Info("exported chunks", zap.Int("count", len(records)), zap.String("path", path))

	if e.objects != nil && e.bucket != "" {
		key := filepath.Base(path)
		url, err := e.objects.UploadFile(ctx, e.bucket, key, buf.Bytes(), "application/json")
		if err != nil {
			// The local archive exists; a failed upload is not fatal.
			e.logger.Error("archive upload failed", zap.Error(err))
		} else {
			e.logger.Info("archive uploaded", zap.String("url", url))
		}
	}
	return nil
}

func categoryOrUnknown(c string) string {
	if c == "" {
		return "unknown"
	}
	return c
}
