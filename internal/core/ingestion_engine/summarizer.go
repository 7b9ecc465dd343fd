package ingestion_engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yuanqii/feishu-rag/internal/core"
	"github.com/yuanqii/feishu-rag/internal/models"
)

// summaryInstruction asks the model for a retrieval-optimized description
// of mixed text/table/image content.
const summaryInstruction = `你的任务：
生成一份全面、便于检索的描述，需涵盖以下内容：
来自文本和表格的关键事实、数字与数据要点
所讨论的主要主题与核心概念
此内容能够回答的问题
视觉内容分析（图表、示意图、图片中的规律等）
用户可能使用的替代搜索词
请确保描述详细且便于检索 —— 优先考虑可查找性，而非简洁性。
可检索描述：`

// Summarizer turns chunks into persistable documents. Text-only chunks
// pass through verbatim; chunks carrying tables or images get one
// multimodal LLM call producing an enhanced, retrieval-friendly summary.
type Summarizer struct {
	llm    core.MultimodalLLM
	logger *zap.Logger
}

func NewSummarizer(llm core.MultimodalLLM, logger *zap.Logger) *Summarizer {
	return &Summarizer{llm: llm, logger: logger}
}

// SummarizeChunks processes every chunk. A failed LLM call falls back to
// the chunk's raw text; a chunk is never dropped, and the sidecar original
// content is attached regardless of the summarization outcome.
func (s *Summarizer) SummarizeChunks(ctx context.Context, chunks []models.Chunk) []models.Document {
	s.logger.Info("summarizing chunks", zap.Int("total", len(chunks)))

	docs := make([]models.Document, 0, len(chunks))
	for i, chunk := range chunks {
		pageContent := chunk.Text

		if chunk.HasRichContent() {
			s.logger.Info("creating AI summary for mixed content",
				zap.Int("chunk", i+1),
				zap.Int("tables", len(chunk.Tables)),
				zap.Int("images", len(chunk.Images)))

			enhanced, err := s.enhance(ctx, chunk)
			if err != nil {
				s.logger.Error("AI summary failed, falling back to raw text",
					zap.Int("chunk", i+1), zap.Error(err))
			} else {
				pageContent = enhanced
			}
		}

		// Image-only chunks with a failed summary would otherwise persist
		// an empty embeddable text.
		if pageContent == "" {
			pageContent = fallbackPageContent(chunk)
		}

		docs = append(docs, models.Document{
			ID:          uuid.NewString(),
			PageContent: pageContent,
			Original: models.OriginalContent{
				RawText:    chunk.Text,
				TablesHTML: chunk.Tables,
				ImagesB64:  chunk.Images,
			},
			Category: strings.Join(chunk.ContentTypes(), ","),
		})
	}

	s.logger.Info("summarization complete", zap.Int("documents", len(docs)))
	return docs
}

// fallbackPageContent supplies embeddable text for a chunk that has none:
// table HTML when present, otherwise a fixed marker for bare images.
func fallbackPageContent(chunk models.Chunk) string {
	if len(chunk.Tables) > 0 {
		return strings.Join(chunk.Tables, "\n")
	}
	return "（图片内容，暂无文字描述）"
}

// enhance makes the single multimodal call for one chunk: instruction,
// then text and numbered tables, then the image parts.
func (s *Summarizer) enhance(ctx context.Context, chunk models.Chunk) (string, error) {
	var body strings.Builder
	fmt.Fprintf(&body, "\n【待分析文本内容】:\n%s\n", chunk.Text)
	if len(chunk.Tables) > 0 {
		body.WriteString("\n【表格数据】:\n")
		for i, table := range chunk.Tables {
			fmt.Fprintf(&body, "表格 %d:\n%s\n", i+1, table)
		}
	}

	parts := []models.PromptPart{
		models.TextPart(summaryInstruction),
		models.TextPart(body.String()),
	}
	for _, img := range chunk.Images {
		parts = append(parts, models.ImagePart(models.NormalizeImageURI(img)))
	}

	return s.llm.Complete(ctx, parts)
}
