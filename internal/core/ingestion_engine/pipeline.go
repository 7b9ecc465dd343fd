package ingestion_engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yuanqii/feishu-rag/internal/core"
)

// Pipeline runs the full ingestion flow for one PDF:
// partition -> chunk -> summarize -> export -> vector store.
type Pipeline struct {
	partitioner core.Partitioner
	chunkerCfg  ChunkerConfig
	summarizer  *Summarizer
	exporter    *Exporter
	writer      *VectorWriter
	exportPath  string
	logger      *zap.Logger
}

func NewPipeline(
	partitioner core.Partitioner,
	chunkerCfg ChunkerConfig,
	summarizer *Summarizer,
	exporter *Exporter,
	writer *VectorWriter,
	exportPath string,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		partitioner: partitioner,
		chunkerCfg:  chunkerCfg,
		summarizer:  summarizer,
		exporter:    exporter,
		writer:      writer,
		exportPath:  exportPath,
		logger:      logger,
	}
}

// Run ingests one document. Partitioning failure aborts the run; a failed
// export or failed batches degrade but do not abort (documents in a failed
// batch are lost from the store, not retried).
func (p *Pipeline) Run(ctx context.Context, pdfPath string) error {
	p.logger.Info("starting ingestion pipeline", zap.String("document", pdfPath))

	elements, err := p.partitioner.Partition(ctx, pdfPath)
	if err != nil {
		return fmt.Errorf("partition: %w", err)
	}
	p.logger.Info("step 1/4 partition done", zap.Int("elements", len(elements)))

	chunks := ChunkByTitle(elements, p.chunkerCfg)
	p.logger.Info("step 2/4 chunking done", zap.Int("chunks", len(chunks)))

	docs := p.summarizer.SummarizeChunks(ctx, chunks)
	p.logger.Info("step 3/4 summarization done", zap.Int("documents", len(docs)))

	if err := p.exporter.Export(ctx, docs, p.exportPath); err != nil {
		p.logger.Error("export failed", zap.Error(err))
	}

	stored, err := p.writer.WriteAll(ctx, docs)
	if err != nil {
		return fmt.Errorf("vector store write: %w", err)
	}
	p.logger.Info("step 4/4 vector store done",
		zap.Int("stored", stored), zap.Int("documents", len(docs)))

	p.logger.Info("ingestion pipeline completed", zap.String("document", pdfPath))
	return nil
}
