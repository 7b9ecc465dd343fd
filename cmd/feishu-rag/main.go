package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yuanqii/feishu-rag/internal/app"
	"github.com/yuanqii/feishu-rag/internal/config"
	ingestor "github.com/yuanqii/feishu-rag/internal/core/ingestion_engine"
)

func main() {
	root := &cobra.Command{
		Use:           "feishu-rag",
		Short:         "Multimodal RAG bot bridging Feishu to a PDF knowledge base",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), ingestCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("DEBUG") != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()
	return ctx, cancel
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server answering Feishu messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg := config.LoadConfig()
			if cfg.FeishuAppID == "" || cfg.FeishuAppSecret == "" {
				return fmt.Errorf("FEISHU_APP_ID and FEISHU_APP_SECRET must be set")
			}

			application, err := app.NewApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			errCh := make(chan error, 1)
			go func() { errCh <- application.Server.Start(ctx) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			return application.Server.Shutdown(shutdownCtx)
		},
	}
}

func ingestCmd() *cobra.Command {
	var watchDir string

	cmd := &cobra.Command{
		Use:   "ingest [pdf...]",
		Short: "Partition, summarize and store PDFs into the vector database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && watchDir == "" {
				return fmt.Errorf("pass at least one PDF path or --watch <dir>")
			}

			ctx, cancel := signalContext()
			defer cancel()

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg := config.LoadConfig()
			application, err := app.NewApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			pipeline, err := application.BuildPipeline(ctx)
			if err != nil {
				return err
			}

			for _, pdf := range args {
				if err := pipeline.Run(ctx, pdf); err != nil {
					return err
				}
			}

			if watchDir != "" {
				watcher := ingestor.NewWatcher(watchDir, pipeline, logger)
				if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&watchDir, "watch", "", "watch a directory and ingest PDFs as they appear")
	return cmd
}
