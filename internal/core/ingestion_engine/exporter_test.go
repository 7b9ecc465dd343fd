package ingestion_engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yuanqii/feishu-rag/internal/models"
)

func TestExportWritesReadableArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data", "summarised_chunks.json")

	docs := []models.Document{
		{
			ID:          "a",
			PageContent: "增强后的描述",
			Original: models.OriginalContent{
				RawText:    "原始文本",
				TablesHTML: []string{"<table/>"},
				ImagesB64:  []string{"aW1n"},
			},
			Category: "text,image",
		},
		{ID: "b", PageContent: "plain", Original: models.OriginalContent{RawText: "plain"}},
	}

	e := NewExporter(nil, "", zap.NewNop())
	require.NoError(t, e.Export(context.Background(), docs, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	// Non-ASCII stays literal, not \uXXXX-escaped.
	assert.Contains(t, string(raw), "原始文本")
	assert.NotContains(t, string(raw), `\u`)

	var records []struct {
		ChunkID         int    `json:"chunk_id"`
		EnhancedContent string `json:"enhanced_content"`
		Metadata        struct {
			OriginalContent models.OriginalContent `json:"original_content"`
			Category        string                 `json:"category"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(raw, &records))
	require.Len(t, records, 2)

	assert.Equal(t, 1, records[0].ChunkID, "chunk ids are 1-based")
	assert.Equal(t, 2, records[1].ChunkID)
	assert.Equal(t, "增强后的描述", records[0].EnhancedContent)
	assert.Equal(t, docs[0].Original, records[0].Metadata.OriginalContent)
	assert.Equal(t, "text,image", records[0].Metadata.Category)
	assert.Equal(t, "unknown", records[1].Metadata.Category, "empty category exported as unknown")
}

func TestExportUploadsArchiveWhenBucketConfigured(t *testing.T) {
	uploads := map[string][]byte{}
	e := NewExporter(uploadFunc(func(bucket, key string, data []byte) {
		uploads[bucket+"/"+key] = data
	}), "rag-archives", zap.NewNop())

	path := filepath.Join(t.TempDir(), "chunks.json")
	docs := []models.Document{{ID: "a", PageContent: "x"}}
	require.NoError(t, e.Export(context.Background(), docs, path))

	require.Len(t, uploads, 1)
	data, ok := uploads["rag-archives/chunks.json"]
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(string(data)), "["))
}

// uploadFunc adapts a function to core.ObjectClient.
type uploadFunc func(bucket, key string, data []byte)

func (f uploadFunc) UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	f(bucket, key, data)
	return "https://example.com/" + bucket + "/" + key, nil
}
