package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yuanqii/feishu-rag/internal/core"
	"github.com/yuanqii/feishu-rag/internal/models"
)

const (
	// Canned answers. Any failure on the answer path degrades into one of
	// these; nothing propagates to the webhook layer.
	answerNotFound      = "抱歉，知识库中未找到相关内容。"
	answerInternalError = "抱歉，系统处理时发生内部故障。"
)

// Retriever answers one query: top-k similarity search, multimodal prompt
// reconstruction from sidecar metadata, one LLM call.
type Retriever struct {
	store  core.VectorStore
	llm    core.MultimodalLLM
	topK   int
	logger *zap.Logger
}

func NewRetriever(store core.VectorStore, llm core.MultimodalLLM, topK int, logger *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = 2
	}
	return &Retriever{store: store, llm: llm, topK: topK, logger: logger}
}

// GetAnswer never returns an error: empty retrieval yields the not-found
// answer, and any failure yields the internal-error answer, both with no
// images.
func (r *Retriever) GetAnswer(ctx context.Context, query string) models.Answer {
	r.logger.Info("retrieving", zap.String("query", query))

	docs, err := r.store.SimilaritySearch(ctx, query, r.topK)
	if err != nil {
		r.logger.Error("similarity search failed", zap.Error(err))
		return models.Answer{Text: answerInternalError}
	}
	if len(docs) == 0 {
		return models.Answer{Text: answerNotFound}
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "请使用上述文本、表格和图片，提供清晰、全面的答案。"+
		"如果文档中没有足够的信息来回答该问题，请说明："+
		"“根据提供的文档，我没有足够的信息来回答这个问题”。\n问题：%s\n\n内容：\n", query)

	var (
		parts     []models.PromptPart
		allImages []string
	)
	for i, doc := range docs {
		fmt.Fprintf(&prompt, "--- 分块 %d ---\n", i+1)

		original := doc.Original
		if original.RawText == "" && len(original.ImagesB64) == 0 && len(original.TablesHTML) == 0 {
			// No sidecar survived; fall back to the embedded text.
			prompt.WriteString(doc.PageContent + "\n")
			continue
		}

		fmt.Fprintf(&prompt, "文字内容：\n%s\n", original.RawText)
		for _, table := range original.TablesHTML {
			fmt.Fprintf(&prompt, "表格：\n%s\n", table)
		}
		for _, img := range original.ImagesB64 {
			clean := models.RawBase64(img)
			parts = append(parts, models.ImagePart(models.NormalizeImageURI(clean)))
			allImages = append(allImages, clean)
		}
	}

	// Prompt text goes first, images follow in retrieval order.
	parts = append([]models.PromptPart{models.TextPart(prompt.String())}, parts...)

	r.logger.Info("calling multimodal LLM",
		zap.Int("chunks", len(docs)), zap.Int("images", len(allImages)))

	answer, err := r.llm.Complete(ctx, parts)
	if err != nil {
		r.logger.Error("LLM call failed", zap.Error(err))
		return models.Answer{Text: answerInternalError}
	}

	return models.Answer{Text: answer, Images: allImages}
}

var _ core.Answerer = (*Retriever)(nil)
