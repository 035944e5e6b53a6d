package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/finsight/ragqa/docstore"
	"github.com/finsight/ragqa/embed"
	"github.com/finsight/ragqa/llm"
	"github.com/finsight/ragqa/rag"
	"github.com/finsight/ragqa/readers"
)

func initDocStore(ctx context.Context, cfg *Config, ef embeddings.EmbeddingFunction, reset bool, logger *slog.Logger) (docstore.Index, error) {
	switch cfg.VectorStore {
	case "memory":
		return docstore.NewMemoryStore(ef, logger), nil
	case "chroma":
		store, err := docstore.NewChromaStore(ctx, docstore.ChromaStoreConfig{
			BaseURL:       cfg.Chroma.Url,
			Collection:    cfg.Chroma.Collection,
			EmbeddingFunc: ef,
			RequestSize:   cfg.RequestSize,
			Reset:         reset,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Chroma doc store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore)
	}
}

func main() {
	reset := flag.Bool("reset", false, "Reinitialize the vector store from scratch if set")
	cfgPath := flag.String("config", "cfg/config.yaml", "Configuration file")
	flag.Parse()

	// .env is optional, real environments set variables directly
	_ = godotenv.Load()

	cfg, err := readConfig(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	logOut := os.Stderr
	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
		if err != nil {
			log.Fatalf("failed to open log file: %s", err)
		}
		defer logFile.Close()
		logOut = logFile
	}
	logger := slog.New(slog.NewJSONHandler(logOut, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiKey := os.Getenv("GOOGLE_API_KEY")

	ef, provider, err := embed.Select(ctx, embed.Config{
		APIKey: apiKey,
		Model:  cfg.Embedding.Model,
	}, logger)
	if err != nil {
		log.Fatal(err)
	}
	logger.Info("selected embedding provider", "provider", provider)

	store, err := initDocStore(ctx, cfg, ef, *reset, logger)
	if err != nil {
		log.Fatal(err)
	}
	if err := store.Verify(ctx); err != nil {
		log.Fatalf("vector store verification failed: %s", err)
	}

	var gen rag.Generator
	if apiKey != "" {
		g, err := llm.NewGemini(ctx, apiKey, cfg.Llm.Model, logger)
		if err != nil {
			log.Fatal(err)
		}
		gen = g
	} else {
		logger.Warn("GOOGLE_API_KEY not set, answers will use the keyword fallback")
	}

	pipeline, err := rag.New(store, gen, rag.Config{
		ChunkSize:           cfg.ChunkSize,
		ChunkOverlap:        cfg.ChunkOverlap,
		RetrievalK:          cfg.RetrievalK,
		SimilarityThreshold: cfg.SimilarityThreshold,
		DedupEnabled:        *cfg.Dedup.Enabled,
		MaxPerPage:          cfg.Dedup.MaxPerPage,
		ContentSimilarity:   cfg.Dedup.ContentSimilarity,
		MaxHistory:          cfg.MaxHistory,
		Timeout:             cfg.requestTimeout(),
	}, logger)
	if err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to create upload dir: %s", err)
	}

	rs := []readers.FileReader{
		&readers.PdfFileReader{},
		&readers.TxtFileReader{},
		&readers.UniversalFileReader{},
	}

	reg := NewDocRegistry(cfg.UploadDir, pipeline, time.Duration(cfg.MergeEventsMs)*time.Millisecond, logger)
	reg.RegisterReader(rs...)

	go func() {
		if err := reg.Sync(ctx); err != nil {
			log.Fatal(err)
		}
		if err := reg.Watch(ctx); err != nil {
			log.Fatal(err)
		}
	}()

	if cfg.McpAddr != "" {
		mcpSrv := NewMcpServer(pipeline)
		sse := server.NewSSEServer(mcpSrv, server.WithBaseURL(fmt.Sprintf("http://%s", cfg.McpAddr)))
		go func() {
			logger.Info("starting mcp server", "addr", cfg.McpAddr)
			if err := sse.Start(cfg.McpAddr); err != nil {
				logger.Error("mcp server stopped", "error", err)
			}
		}()
	}

	api := NewApiServer(pipeline, reg, cfg.UploadDir, rs, cfg.AllowedOrigins, logger)
	logger.Info("starting api server", "addr", cfg.ServerAddr)
	log.Println(api.Router().Run(cfg.ServerAddr))
}
