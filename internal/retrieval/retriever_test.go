package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yuanqii/feishu-rag/internal/models"
)

type fakeStore struct {
	docs []models.Document
	err  error
	gotK int
}

func (f *fakeStore) AddDocuments(ctx context.Context, docs []models.Document) error { return nil }

func (f *fakeStore) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Document, error) {
	f.gotK = k
	return f.docs, f.err
}

func (f *fakeStore) Close() error { return nil }

type fakeLLM struct {
	parts    []models.PromptPart
	response string
	err      error
}

func (f *fakeLLM) Complete(ctx context.Context, parts []models.PromptPart) (string, error) {
	f.parts = parts
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestGetAnswerNoResults(t *testing.T) {
	store := &fakeStore{}
	llm := &fakeLLM{response: "unused"}
	r := NewRetriever(store, llm, 2, zap.NewNop())

	answer := r.GetAnswer(context.Background(), "未知问题")
	assert.Equal(t, answerNotFound, answer.Text)
	assert.Empty(t, answer.Images)
	assert.Equal(t, 2, store.gotK)
	assert.Nil(t, llm.parts, "no LLM call without retrieved chunks")
}

func TestGetAnswerAssemblesMultimodalPrompt(t *testing.T) {
	store := &fakeStore{docs: []models.Document{
		{
			PageContent: "summary one",
			Original: models.OriginalContent{
				RawText:   "第一块原文",
				ImagesB64: []string{"aW1nMQ=="},
			},
		},
		{
			PageContent: "summary two",
			Original: models.OriginalContent{
				RawText:    "第二块原文",
				TablesHTML: []string{"<table/>"},
				ImagesB64:  []string{"data:image/jpeg;base64,aW1nMg=="},
			},
		},
	}}
	llm := &fakeLLM{response: "最终回答"}
	r := NewRetriever(store, llm, 2, zap.NewNop())

	answer := r.GetAnswer(context.Background(), "流程是什么？")
	assert.Equal(t, "最终回答", answer.Text)

	// Answer carries the raw payloads with any data-URI prefix stripped.
	assert.Equal(t, []string{"aW1nMQ==", "aW1nMg=="}, answer.Images)

	require.NotEmpty(t, llm.parts)
	prompt := llm.parts[0].Text
	assert.Contains(t, prompt, "流程是什么？")
	assert.Contains(t, prompt, "--- 分块 1 ---")
	assert.Contains(t, prompt, "第一块原文")
	assert.Contains(t, prompt, "--- 分块 2 ---")
	assert.Contains(t, prompt, "<table/>")

	// Text preamble first, then one image part per payload.
	require.Len(t, llm.parts, 3)
	for _, p := range llm.parts[1:] {
		assert.True(t, strings.HasPrefix(p.ImageURI, "data:image/"))
	}
}

func TestGetAnswerFallsBackToPageContent(t *testing.T) {
	// A document whose sidecar did not survive still contributes its
	// embedded text.
	store := &fakeStore{docs: []models.Document{{PageContent: "only embedded text"}}}
	llm := &fakeLLM{response: "ok"}
	r := NewRetriever(store, llm, 2, zap.NewNop())

	answer := r.GetAnswer(context.Background(), "q")
	assert.Equal(t, "ok", answer.Text)
	assert.Contains(t, llm.parts[0].Text, "only embedded text")
}

func TestGetAnswerSearchFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("store offline")}
	r := NewRetriever(store, &fakeLLM{}, 2, zap.NewNop())

	answer := r.GetAnswer(context.Background(), "q")
	assert.Equal(t, answerInternalError, answer.Text)
	assert.Empty(t, answer.Images)
}

func TestGetAnswerLLMFailure(t *testing.T) {
	store := &fakeStore{docs: []models.Document{{
		PageContent: "x",
		Original:    models.OriginalContent{RawText: "原文", ImagesB64: []string{"aW1n"}},
	}}}
	llm := &fakeLLM{err: errors.New("model overloaded")}
	r := NewRetriever(store, llm, 2, zap.NewNop())

	answer := r.GetAnswer(context.Background(), "q")
	assert.Equal(t, answerInternalError, answer.Text)
	assert.Empty(t, answer.Images, "no images ride along with a canned answer")
}

func TestNewRetrieverDefaultsTopK(t *testing.T) {
	store := &fakeStore{}
	r := NewRetriever(store, &fakeLLM{}, 0, zap.NewNop())
	r.GetAnswer(context.Background(), "q")
	assert.Equal(t, 2, store.gotK)
}
