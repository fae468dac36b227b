package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"medrag/internal/assistant"
	"medrag/internal/chunker"
	"medrag/internal/config"
	"medrag/internal/domain"
	"medrag/internal/embedding/tfidf"
	"medrag/internal/extractor"
	"medrag/internal/llm"
	"medrag/internal/logger"
	"medrag/internal/retriever"
	"medrag/internal/service"
	"medrag/internal/summarizer"
	"medrag/internal/tui"
	"medrag/internal/vectorstore/memory"
	"medrag/internal/websearch"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath string
		query   string
		topK    int
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/medrag/config.yaml if not provided)")
	flag.StringVar(&query, "query", "", "Answer one question non-interactively and exit")
	flag.IntVar(&topK, "top-k", 0, "Number of chunks to retrieve (overrides retrieval.top_k)")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "Usage: medrag [-config=config.yaml] [-query=\"...\"] [-top-k=N] [document ...]")
		flag.PrintDefaults()
	}
	flag.Parse()
	inputs := flag.Args()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if topK > 0 {
		cfg.Retrieval.TopK = topK
	}

	logDir := cfg.Log.OutputPath
	if logDir == "" {
		if dir, err := config.UserDir(); err == nil {
			logDir = filepath.Join(dir, "logs")
		}
	}
	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format, logDir, false)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc, err := newSession(cfg, zl)
	if err != nil {
		zl.Error("session setup failed", zap.Error(err))
		log.Fatalf("setup failed: %v", err)
	}
	bot := newAssistant(cfg, svc, zl)
	mode, err := assistant.ParseMode(cfg.Assistant.Mode)
	if err != nil {
		log.Fatal(err)
	}
	opts := assistant.Options{
		Mode:          mode,
		UseRAG:        cfg.Assistant.UseRAG,
		UseWeb:        cfg.Assistant.UseWeb,
		TopK:          cfg.Retrieval.TopK,
		MaxWebResults: cfg.WebSearch.MaxResults,
		Temperature:   cfg.LLM.Temperature,
	}

	if query != "" {
		if err := runQuery(ctx, svc, bot, opts, inputs, query); err != nil {
			log.Fatal(err)
		}
		return
	}

	m := tui.New(ctx, svc, bot, opts, inputs)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Fatal(err)
	}
}

func newSession(cfg *config.AppConfig, zl *zap.Logger) (*service.RAGService, error) {
	ch, err := chunker.NewWindowChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}

	var vec domain.Vectorizer
	switch cfg.Embedder.Type {
	case "tfidf", "":
		vec = tfidf.NewVectorizer(cfg.Embedder.MaxFeatures)
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var sum domain.Summarizer
	switch cfg.Summarizer.Type {
	case "frequency", "":
		sum = summarizer.NewFrequencySummarizer()
	case "none":
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}

	store := memory.NewStorage(vec, zl.Named("store"))
	zl.Info("session ready",
		zap.Int("chunk_size", ch.ChunkSize()),
		zap.Int("overlap", ch.Overlap()),
		zap.String("embedder", cfg.Embedder.Type),
		zap.Int("max_features", cfg.Embedder.MaxFeatures),
	)
	return service.NewRAGService(
		extractor.New(zl.Named("extractor")),
		ch,
		store,
		retriever.New(store, zl.Named("retriever")),
		sum,
		service.Options{SummaryMaxSentences: cfg.Summarizer.MaxSentences},
		zl.Named("service"),
	), nil
}

func newAssistant(cfg *config.AppConfig, svc *service.RAGService, zl *zap.Logger) *assistant.Assistant {
	web := websearch.New(cfg.WebSearch.BaseURL, cfg.WebSearch.Region,
		time.Duration(cfg.WebSearch.TimeoutSecs)*time.Second, zl.Named("websearch"))

	var model assistant.ChatModel
	client, err := llm.New(llm.Config{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     os.Getenv(cfg.LLM.APIKeyEnv),
		Model:      cfg.LLM.Model,
		Timeout:    time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
		MaxRetries: 1,
	}, zl.Named("llm"))
	if err != nil {
		zl.Warn("chat model disabled", zap.String("api_key_env", cfg.LLM.APIKeyEnv), zap.Error(err))
	} else {
		model = client
	}
	return assistant.New(svc, web, model, zl.Named("assistant"))
}

func runQuery(ctx context.Context, svc *service.RAGService, bot *assistant.Assistant, opts assistant.Options, inputs []string, query string) error {
	if len(inputs) > 0 {
		reports, err := svc.IngestDocuments(ctx, inputs)
		for _, r := range reports {
			fmt.Fprintf(os.Stderr, "ingested %s: %d chunk(s)\n", r.Source, r.Chunks)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "ingest errors: %v\n", err)
		}
	}

	if !bot.HasModel() {
		results, err := svc.Query(query, opts.TopK)
		if err != nil {
			return err
		}
		for i, r := range results {
			fmt.Printf("%d. [%.3f] %s #%d\n%s\n\n", i+1, r.Score, r.Chunk.Source, r.Chunk.Index, r.Chunk.Text)
		}
		return nil
	}

	reply, err := bot.Reply(ctx, []llm.Message{{Role: llm.RoleUser, Content: query}}, opts)
	for _, w := range reply.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	if err != nil {
		return err
	}
	fmt.Println(reply.Content)
	return nil
}
