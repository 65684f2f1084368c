package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"knowledge-rag/internal/chunker"
	"knowledge-rag/internal/config"
	"knowledge-rag/internal/db"
	"knowledge-rag/internal/embedding"
	"knowledge-rag/internal/helper"
	"knowledge-rag/internal/ingest"
	"knowledge-rag/internal/rag"
	"knowledge-rag/internal/reranker"
	"knowledge-rag/internal/retriever"
	"knowledge-rag/internal/scorer"
	"knowledge-rag/internal/vectorindex"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	filePath := flag.String("file", "", "Path to a document to ingest")
	query := flag.String("query", "", "Question to answer from the knowledge base")
	chat := flag.String("chat", "", "Free-form message routed by intent")
	note := flag.String("note", "", "Fact to store as a manual note")
	deleteID := flag.String("delete", "", "Document id to remove")
	list := flag.Bool("list", false, "List ingested documents")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}

	app, cleanup, err := newApp()
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing")
	}
	defer cleanup()

	ctx := context.Background()
	switch {
	case *filePath != "":
		ingestFile(ctx, app, *filePath)
	case *query != "":
		answerQuery(ctx, app, *query)
	case *chat != "":
		handleChat(ctx, app, *chat)
	case *note != "":
		addNote(ctx, app, *note)
	case *deleteID != "":
		deleteDocument(ctx, app, *deleteID)
	case *list:
		listDocuments(ctx, app)
	default:
		flag.Usage()
	}
}

type app struct {
	cfg      *config.Config
	store    *bun.DB
	pipeline *ingest.Pipeline
	rag      *rag.RAG
}

func newApp() (*app, func(), error) {
	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		log.Warn().Err(err).Msg("Config file not loaded, using defaults")
		cfg = config.Default()
	}

	for _, dir := range []string{filepath.Dir(cfg.Database.Path), cfg.RAG.VectorDBPath} {
		if err := helper.CreateFolder(dir); err != nil {
			return nil, nil, err
		}
	}

	sqldb, err := db.ConnectDB(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening metadata store: %w", err)
	}
	store := db.NewDB(sqldb, cfg.Database.Debug)
	if err := db.InitDB(context.Background(), store); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("initializing metadata store: %w", err)
	}

	index, err := vectorindex.NewChromemIndex(cfg.RAG.VectorDBPath, cfg.RAG.CollectionName, false)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("opening vector index: %w", err)
	}

	backend, err := embedding.NewBackend(&cfg.EmbedLLM)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("initializing embedder: %w", err)
	}
	embedder := embedding.NewService(
		backend,
		cfg.EmbedLLM.Model,
		cfg.RAG.EmbedCacheSize,
		embedding.DefaultRetryPolicy(cfg.RAG.EmbedMaxAttempts),
	)

	rr, err := reranker.NewHTTPReranker(&cfg.Reranker)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("initializing reranker: %w", err)
	}

	docScorer := scorer.New(scorer.WeightedCoverage{
		MaxWeight:     cfg.RAG.DocScoreWeight,
		CoverageBonus: cfg.RAG.CoverageBonus,
		CoverageCap:   10,
	}, cfg.RAG.MinChunksPerDoc)

	engine := retriever.NewEngine(embedder, index, docScorer, rr, &cfg.RAG)
	pipeline := ingest.NewPipeline(chunker.New(&cfg.RAG), embedder, index, store, cfg.RAG.NotesPath)
	assistant := rag.NewRAG(engine, pipeline, store, &cfg.ChatLLM, cfg.RAG.HistoryLimit)

	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing metadata store")
		}
	}
	return &app{cfg: cfg, store: store, pipeline: pipeline, rag: assistant}, cleanup, nil
}

func ingestFile(ctx context.Context, a *app, filePath string) {
	result, err := a.pipeline.IngestFile(ctx, filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting document")
	}
	if result.Unchanged {
		log.Info().Str("file", result.Filename).Msg("Already up to date")
		return
	}
	log.Info().
		Str("file", result.Filename).
		Str("document", result.DocumentID).
		Int("chunks", result.Chunks).
		Msg("Ingested")
}

func answerQuery(ctx context.Context, a *app, query string) {
	answer, err := a.rag.Query(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering query")
	}

	fmt.Printf("\nQ: %s\n\n", query)
	fmt.Printf("%s\n\n", answer.Answer)
	fmt.Printf("Confidence: %s\n", answer.Confidence)
	if len(answer.Sources) > 0 {
		fmt.Println("Sources:")
		for _, s := range answer.Sources {
			fmt.Printf("  - %s\n", s)
		}
	}
	if len(answer.MissingInfo) > 0 {
		fmt.Println("Missing information:")
		for _, m := range answer.MissingInfo {
			fmt.Printf("  - %s\n", m)
		}
	}
	if len(answer.EnrichmentSuggestions) > 0 {
		fmt.Println("Where to look:")
		for _, s := range answer.EnrichmentSuggestions {
			fmt.Printf("  - %s\n", s)
		}
	}
}

func handleChat(ctx context.Context, a *app, message string) {
	resp, err := a.rag.HandleMessage(ctx, message)
	if err != nil {
		log.Fatal().Err(err).Msg("Error handling message")
	}
	log.Debug().Str("intent", string(resp.Intent)).Msg("Handled message")
	fmt.Printf("\n%s\n", resp.Content)
}

func addNote(ctx context.Context, a *app, note string) {
	result, err := a.pipeline.AddNote(ctx, note)
	if err != nil {
		log.Fatal().Err(err).Msg("Error storing note")
	}
	log.Info().Str("document", result.DocumentID).Int("chunks", result.Chunks).Msg("Note stored")
}

func deleteDocument(ctx context.Context, a *app, documentID string) {
	if err := a.pipeline.DeleteDocument(ctx, documentID); err != nil {
		log.Fatal().Err(err).Msg("Error deleting document")
	}
	log.Info().Str("document", documentID).Msg("Deleted")
}

func listDocuments(ctx context.Context, a *app) {
	docs, err := db.ListDocuments(ctx, a.store)
	if err != nil {
		log.Fatal().Err(err).Msg("Error listing documents")
	}
	if len(docs) == 0 {
		fmt.Println("No documents ingested.")
		return
	}
	for _, d := range docs {
		fmt.Printf("%s  %-30s  %-10s  %s\n", d.ID, d.Filename, d.SourceType, d.IngestedAt.Format(time.RFC3339))
	}
}
