package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yuanqii/feishu-rag/internal/api/handlers"
	"github.com/yuanqii/feishu-rag/internal/config"
	"github.com/yuanqii/feishu-rag/internal/core"
	ingestor "github.com/yuanqii/feishu-rag/internal/core/ingestion_engine"
	"github.com/yuanqii/feishu-rag/internal/core/llm"
	"github.com/yuanqii/feishu-rag/internal/core/objectstore"
	"github.com/yuanqii/feishu-rag/internal/core/vectorstore"
	"github.com/yuanqii/feishu-rag/internal/feishu"
	"github.com/yuanqii/feishu-rag/internal/retrieval"
)

// App bundles the shared collaborators of both pipelines.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Embedder  *llm.GeminiEmbedder
	LLM       *llm.GeminiLLM
	Store     core.VectorStore
	Retriever *retrieval.Retriever
	Feishu    *feishu.Client
	Server    *Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	embedder, err := llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	llmProvider, err := llm.NewGeminiLLM(ctx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("init llm: %w", err)
	}

	store, err := newVectorStore(ctx, cfg, embedder)
	if err != nil {
		return nil, err
	}
	logger.Info("vector store ready", zap.String("backend", cfg.VectorBackend))

	retriever := retrieval.NewRetriever(store, llmProvider, cfg.TopK, logger)
	feishuClient := feishu.NewClient(cfg.FeishuAppID, cfg.FeishuAppSecret, logger)

	webhook := handlers.NewWebhookHandler(ctx, cfg.FeishuEncryptKey, retriever, feishuClient, logger)
	server := NewServer(cfg, webhook, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Embedder:  embedder,
		LLM:       llmProvider,
		Store:     store,
		Retriever: retriever,
		Feishu:    feishuClient,
		Server:    server,
	}, nil
}

func (a *App) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.LLM != nil {
		_ = a.LLM.Close()
	}
}

func newVectorStore(ctx context.Context, cfg *config.Config, embedder core.EmbeddingProvider) (core.VectorStore, error) {
	switch cfg.VectorBackend {
	case "pgvector":
		store, err := vectorstore.NewPgvectorStore(ctx, cfg.DatabaseURL, embedder, cfg.EmbedDim)
		if err != nil {
			return nil, fmt.Errorf("init pgvector store: %w", err)
		}
		return store, nil
	case "chromem", "":
		store, err := vectorstore.NewChromemStore(cfg.VectorDBPath, cfg.Collection, embedder)
		if err != nil {
			return nil, fmt.Errorf("init chromem store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown VECTOR_BACKEND %q", cfg.VectorBackend)
	}
}

// BuildPipeline wires the offline ingestion flow from the app's shared
// collaborators plus the ingestion-only ones (partitioner, exporter,
// writer).
func (a *App) BuildPipeline(ctx context.Context) (*ingestor.Pipeline, error) {
	var partitioner core.Partitioner
	if a.Config.UnstructuredAPIURL != "" {
		partitioner = ingestor.NewUnstructuredPartitioner(a.Config.UnstructuredAPIURL, a.Config.UnstructuredAPIKey, a.Logger)
	} else {
		partitioner = ingestor.NewDocconvPartitioner(a.Logger)
	}

	var objects core.ObjectClient
	if a.Config.ArchiveBucket != "" {
		s3Client, err := objectstore.NewS3Client(ctx, a.Config.AwsAccessKey, a.Config.AwsSecretKey, a.Config.AwsRegion)
		if err != nil {
			return nil, fmt.Errorf("init object client: %w", err)
		}
		objects = s3Client
	}

	summarizer := ingestor.NewSummarizer(a.LLM, a.Logger)
	exporter := ingestor.NewExporter(objects, a.Config.ArchiveBucket, a.Logger)
	writer := ingestor.NewVectorWriter(a.Store, a.Config.BatchSize, a.Config.BatchInterval, a.Logger)

	return ingestor.NewPipeline(
		partitioner,
		ingestor.DefaultChunkerConfig(),
		summarizer,
		exporter,
		writer,
		a.Config.ExportPath,
		a.Logger,
	), nil
}
