package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sorealabs/mybro-agent/internal/adapters/classify"
	"github.com/sorealabs/mybro-agent/internal/adapters/crisis"
	"github.com/sorealabs/mybro-agent/internal/adapters/extract"
	httpadapter "github.com/sorealabs/mybro-agent/internal/adapters/http"
	"github.com/sorealabs/mybro-agent/internal/adapters/llm"
	firestorestore "github.com/sorealabs/mybro-agent/internal/adapters/storage/firestore"
	memstore "github.com/sorealabs/mybro-agent/internal/adapters/storage/memory"
	sqlitestore "github.com/sorealabs/mybro-agent/internal/adapters/storage/sqlite"
	"github.com/sorealabs/mybro-agent/internal/app/background"
	"github.com/sorealabs/mybro-agent/internal/app/turn"
	"github.com/sorealabs/mybro-agent/internal/config"
	"github.com/sorealabs/mybro-agent/internal/domain"
	"github.com/sorealabs/mybro-agent/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MyBro API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// stores groups the three persistence ports every backend implements.
type stores interface {
	domain.ProfileStore
	domain.HistoryStore
	domain.EventStore
}

func buildStores(ctx context.Context, cfg *config.Config) (stores, func(), error) {
	log := observability.Logger()

	switch cfg.StorageBackend {
	case "firestore":
		if cfg.GCPProjectID == "" {
			return nil, nil, fmt.Errorf("MYBRO_GCP_PROJECT is required for the firestore backend")
		}
		log.Info("using firestore storage", "project", cfg.GCPProjectID)
		store, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing firestore store: %w", err)
		}
		return store, func() {}, nil

	case "sqlite":
		log.Info("using sqlite storage", "data_dir", cfg.DataDir)
		store, err := sqlitestore.Open(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing sqlite store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil

	default:
		log.Info("using in-memory storage")
		return memstore.NewStore(), func() {}, nil
	}
}

func buildOrchestrator(ctx context.Context, cfg *config.Config, store stores, launcher domain.TaskLauncher) (*turn.Orchestrator, error) {
	log := observability.Logger()

	var (
		llmClient domain.LLMClient
		emotions  domain.EmotionClassifier
		topics    domain.TopicFilter
		extractor domain.EventExtractor
	)

	if cfg.UseMockLLM {
		log.Info("using mock LLM and lexicon classifiers")
		llmClient = llm.NewMockLLM()
		emotions = classify.NewLexiconEmotion()
		topics = classify.NewLexiconTopic()
		extractor = extract.NewNoopExtractor()
	} else {
		log.Info("using genai LLM", "model", cfg.ModelName)
		client, err := llm.NewGenAIClient(ctx, llm.Options{
			APIKey:    cfg.GeminiAPIKey,
			ProjectID: cfg.GCPProjectID,
			Location:  cfg.GCPLocation,
			ModelName: cfg.ModelName,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing genai client: %w", err)
		}
		llmClient = client

		classifier := classify.NewGenAIClassifier(client.Client(), cfg.ModelName)
		emotions = classifier
		topics = classifier
		extractor = extract.NewGenAIExtractor(client.Client(), cfg.ModelName)
	}

	return turn.New(turn.Config{
		Profiles:     store,
		History:      store,
		Events:       store,
		Emotions:     emotions,
		Topics:       topics,
		Crisis:       crisis.NewScriptedResponder(),
		Extractor:    extractor,
		LLM:          llmClient,
		Background:   launcher,
		HistoryLimit: cfg.HistoryLimit,
	})
}

func runServer() error {
	ctx := context.Background()
	cfg := config.Load()
	log := observability.Logger()

	store, closeStore, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	launcher := background.NewLauncher(0)

	orchestrator, err := buildOrchestrator(ctx, cfg, store, launcher)
	if err != nil {
		return err
	}

	handler := httpadapter.NewServer(orchestrator, store)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("MyBro API listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}

	// Let queued background writes land before the store closes.
	launcher.Close()
	return nil
}
