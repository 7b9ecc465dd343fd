package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yuanqii/feishu-rag/internal/models"
)

// fakeStore records every batch it receives and can fail selected batches.
type fakeStore struct {
	batches     [][]models.Document
	failBatches map[int]bool // 1-based batch numbers to fail
}

func (f *fakeStore) AddDocuments(ctx context.Context, docs []models.Document) error {
	f.batches = append(f.batches, docs)
	if f.failBatches[len(f.batches)] {
		return errors.New("provider rate limit")
	}
	return nil
}

func (f *fakeStore) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Document, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

func makeDocs(n int) []models.Document {
	docs := make([]models.Document, n)
	for i := range docs {
		docs[i] = models.Document{ID: fmt.Sprintf("doc-%d", i), PageContent: "content"}
	}
	return docs
}

func TestWriteAllBatchCount(t *testing.T) {
	cases := []struct {
		docs, batchSize, wantBatches int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{7, 3, 3},
	}

	for _, tc := range cases {
		store := &fakeStore{}
		w := NewVectorWriter(store, tc.batchSize, 0, zap.NewNop())

		stored, err := w.WriteAll(context.Background(), makeDocs(tc.docs))
		require.NoError(t, err)
		assert.Len(t, store.batches, tc.wantBatches, "docs=%d batch=%d", tc.docs, tc.batchSize)
		assert.Equal(t, tc.docs, stored)

		for _, b := range store.batches {
			assert.LessOrEqual(t, len(b), tc.batchSize)
		}
	}
}

func TestWriteAllPreservesOrder(t *testing.T) {
	store := &fakeStore{}
	w := NewVectorWriter(store, 4, 0, zap.NewNop())

	docs := makeDocs(10)
	_, err := w.WriteAll(context.Background(), docs)
	require.NoError(t, err)

	var flattened []models.Document
	for _, b := range store.batches {
		flattened = append(flattened, b...)
	}
	assert.Equal(t, docs, flattened)
}

func TestWriteAllSkipsFailedBatchAndContinues(t *testing.T) {
	store := &fakeStore{failBatches: map[int]bool{2: true}}
	w := NewVectorWriter(store, 10, 0, zap.NewNop())

	stored, err := w.WriteAll(context.Background(), makeDocs(25))
	require.NoError(t, err, "a failed batch does not fail the run")

	assert.Len(t, store.batches, 3, "all batches attempted")
	assert.Equal(t, 15, stored, "the failed batch is lost, not retried")
}

func TestWriteAllStopsOnCancelledContext(t *testing.T) {
	store := &fakeStore{}
	w := NewVectorWriter(store, 5, 0, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.WriteAll(ctx, makeDocs(10))
	assert.Error(t, err)
}
