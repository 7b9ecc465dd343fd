package ingestion_engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yuanqii/feishu-rag/internal/models"
)

func TestUnstructuredPartitionerMapsElements(t *testing.T) {
	var gotStrategy string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(10<<20))
		gotStrategy = r.FormValue("strategy")

		_, _, err := r.FormFile("files")
		require.NoError(t, err)

		elements := []map[string]any{
			{"type": "Title", "text": "第一章 概述"},
			{"type": "NarrativeText", "text": "这是正文段落。"},
			{
				"type": "Table", "text": "阶段 产出",
				"metadata": map[string]any{"text_as_html": "<table><tr><td>阶段</td></tr></table>"},
			},
			{
				"type": "Image", "text": "",
				"metadata": map[string]any{"image_base64": "aW1hZ2VieXRlcw=="},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(elements)
	}))
	defer server.Close()

	pdf := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4 fake"), 0o644))

	p := NewUnstructuredPartitioner(server.URL, "", zap.NewNop())
	elements, err := p.Partition(context.Background(), pdf)
	require.NoError(t, err)

	assert.Equal(t, "hi_res", gotStrategy)
	require.Len(t, elements, 4)
	assert.Equal(t, models.CategoryTitle, elements[0].Category)
	assert.Equal(t, models.CategoryText, elements[1].Category)
	assert.Equal(t, models.CategoryTable, elements[2].Category)
	assert.Equal(t, "<table><tr><td>阶段</td></tr></table>", elements[2].TableHTML)
	assert.Equal(t, models.CategoryImage, elements[3].Category)
	assert.Equal(t, "aW1hZ2VieXRlcw==", elements[3].ImageB64)
}

func TestUnstructuredPartitionerTableFallsBackToText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		elements := []map[string]any{{"type": "Table", "text": "raw table text"}}
		_ = json.NewEncoder(w).Encode(elements)
	}))
	defer server.Close()

	pdf := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("x"), 0o644))

	p := NewUnstructuredPartitioner(server.URL, "", zap.NewNop())
	elements, err := p.Partition(context.Background(), pdf)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, "raw table text", elements[0].TableHTML)
}

func TestUnstructuredPartitionerFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	pdf := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("x"), 0o644))

	p := NewUnstructuredPartitioner(server.URL, "", zap.NewNop())
	_, err := p.Partition(context.Background(), pdf)
	assert.Error(t, err)
}

func TestUnstructuredPartitionerMissingFile(t *testing.T) {
	p := NewUnstructuredPartitioner("http://localhost:1", "", zap.NewNop())
	_, err := p.Partition(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}
