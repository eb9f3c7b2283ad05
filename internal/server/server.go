package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mihaisavezi/polychat/internal/chat"
	"github.com/mihaisavezi/polychat/internal/config"
	"github.com/mihaisavezi/polychat/internal/delegate"
	"github.com/mihaisavezi/polychat/internal/dispatch"
	"github.com/mihaisavezi/polychat/internal/handlers"
	"github.com/mihaisavezi/polychat/internal/history"
	"github.com/mihaisavezi/polychat/internal/middleware"
	"github.com/mihaisavezi/polychat/internal/providers"
	"github.com/mihaisavezi/polychat/internal/search"
)

const (
	readTimeout     = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	config     *config.Manager
	registry   *providers.Registry
	dispatcher *dispatch.Dispatcher
	searcher   handlers.Searcher
	history    *history.Store
	logger     *slog.Logger
	server     *http.Server
}

// New wires the gateway from configuration. Optional parts that fail to
// initialise (the history store) are logged and left out.
func New(configManager *config.Manager, logger *slog.Logger) *Server {
	cfg := configManager.Get()
	client := &http.Client{}

	registry := providers.NewRegistry()
	registry.Initialize(ProviderOptions(cfg))

	s := &Server{
		config:   configManager,
		registry: registry,
		logger:   logger,
	}

	local := search.NewService(cfg.Search.BraveAPIKey, client, logger)
	s.searcher = local

	var chatSearcher dispatch.Searcher
	switch {
	case cfg.Search.Endpoint != "":
		chatSearcher = search.NewClient(cfg.Search.Endpoint, client)
	case local.Configured():
		chatSearcher = local
	default:
		logger.Info("Web search disabled: no search endpoint or Brave API key configured")
	}

	code, image, video := cfg.DelegateURLs()
	delegates := delegate.NewClient(delegate.Endpoints{Code: code, Image: image, Video: video}, client, logger)

	opts := dispatch.Options{
		Registry:       registry,
		HTTPClient:     client,
		Searcher:       chatSearcher,
		Delegates:      delegates,
		Logger:         logger,
		SearchResults:  cfg.Search.MaxResults,
		RequestTimeout: cfg.RequestTimeout(),
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warn("History disabled", "path", cfg.History.Path, "error", err)
		} else {
			s.history = store
			opts.Recorder = store
		}
	}

	s.dispatcher = dispatch.New(opts)

	return s
}

// ProviderOptions converts the configured overrides for the registry.
func ProviderOptions(cfg *config.Config) map[string]providers.Options {
	opts := make(map[string]providers.Options, len(chat.KnownProviders))

	for _, name := range chat.KnownProviders {
		o := cfg.Providers[name]
		opts[name] = providers.Options{
			BaseURL: o.BaseURL,
			Extra:   o.Extra,
			Referer: cfg.PublicURL,
		}
	}

	return opts
}

func (s *Server) Start() error {
	cfg := s.config.Get()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		// delegates may take 120s on top of the inline request deadline
		WriteTimeout: cfg.RequestTimeout() + delegate.CodeTimeout + 30*time.Second,
	}

	s.logger.Info("Starting server", "address", addr, "providers", s.registry.List())

	errCh := make(chan error, 1)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		s.closeHistory()
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	s.logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.closeHistory()

	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server exited")

	return nil
}

func (s *Server) Stop() error {
	defer s.closeHistory()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) closeHistory() {
	if s.history == nil {
		return
	}

	if err := s.history.Close(); err != nil {
		s.logger.Warn("Failed to close history store", "error", err)
	}

	s.history = nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	chatHandler := handlers.NewChatHandler(s.dispatcher, s.logger)
	searchHandler := handlers.NewSearchHandler(s.searcher, s.logger)
	providersHandler := handlers.NewProvidersHandler(s.registry, s.logger)
	healthHandler := handlers.NewHealthHandler(s.logger)

	// a nil *history.Store must not become a non-nil interface
	var historyReader handlers.HistoryReader
	if s.history != nil {
		historyReader = s.history
	}

	historyHandler := handlers.NewHistoryHandler(historyReader, s.logger)

	middlewareSet := middleware.NewMiddlewareSet(s.config, s.logger)
	api := middlewareSet.DefaultChain()

	mux.Handle("/health", middlewareSet.HealthChain().Handler(healthHandler))
	mux.Handle("/api/chat", api.Handler(chatHandler))
	mux.Handle("/api/web-search", api.Handler(searchHandler))
	mux.Handle("/api/providers", api.Handler(providersHandler))
	mux.Handle("/api/history", api.Handler(historyHandler))

	return mux
}
