package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokcfg "golang.ngrok.com/ngrok/config"

	"github.com/yuanqii/feishu-rag/internal/api/handlers"
	"github.com/yuanqii/feishu-rag/internal/config"
)

const webhookPath = "/api/feishu/webhook"

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	webhook    *handlers.WebhookHandler
	ngrokToken string
	logger     *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, webhook *handlers.WebhookHandler, logger *zap.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Post(webhookPath, webhook.HandleEvent)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{
		httpServer: httpSrv,
		webhook:    webhook,
		ngrokToken: cfg.NgrokToken,
		logger:     logger,
	}
}

// Start runs the HTTP server. With an ngrok token configured it listens on
// a public tunnel and logs the webhook URL to paste into the platform's
// event-subscription settings; otherwise it binds the local port.
func (s *Server) Start(ctx context.Context) error {
	if s.ngrokToken != "" {
		tun, err := ngrok.Listen(ctx,
			ngrokcfg.HTTPEndpoint(),
			ngrok.WithAuthtoken(s.ngrokToken),
		)
		if err != nil {
			return err
		}
		s.logger.Info("ngrok tunnel established",
			zap.String("webhook_url", tun.URL()+webhookPath))
		err = s.httpServer.Serve(tun)
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}

	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, then waits for in-flight answer
// tasks so replies already being composed still go out.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	err := s.httpServer.Shutdown(ctx)
	s.webhook.Wait()
	return err
}
