package app

import (
	"context"
	"time"

	"github.com/minatolabs/kbchat/internal/config"
	"github.com/minatolabs/kbchat/internal/core"
	"github.com/minatolabs/kbchat/internal/core/database"
	"github.com/minatolabs/kbchat/internal/core/llm"
	objectclient "github.com/minatolabs/kbchat/internal/core/object-client"
	"github.com/minatolabs/kbchat/internal/core/transcribe"
	"github.com/minatolabs/kbchat/internal/kb"
	"github.com/minatolabs/kbchat/internal/kb/extract"
	"github.com/minatolabs/kbchat/internal/kb/ingest"
	"github.com/minatolabs/kbchat/internal/pkg/logger"
)

// App owns every long-lived component and their wiring.
type App struct {
	DBClient   core.DbClient
	Registry   *kb.Registry
	Aggregator *kb.Aggregator
	Ingestor   *ingest.Ingestor
	Server     *Server
	Log        *logger.Logger

	llmClient *llm.GeminiLLM
}

func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	bootCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := database.NewDatabaseClient(bootCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("database ready")

	objClient, err := objectclient.NewS3Client(bootCtx, cfg, log)
	if err != nil {
		return nil, err
	}

	llmClient, err := llm.NewGeminiLLM(bootCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, err
	}

	transcriber := transcribe.NewClient(cfg.TranscribeAPIKey, cfg.TranscribeBaseURL, log)
	dispatcher := extract.NewDispatcher(llmClient, transcriber, log, cfg.MaxMediaMB, cfg.MaxPDFMB)

	registry := kb.NewRegistry(dbClient, log)
	if err := registry.Rehydrate(bootCtx); err != nil {
		return nil, err
	}

	aggregator := kb.NewAggregator(registry, dispatcher, ingest.NewObjectLoader(objClient), log)
	aggregator.Refresh(bootCtx)

	assembler := kb.NewAssembler(registry, aggregator, cfg.CompatSubstringMatch, log)

	ingestor := ingest.NewIngestor(dbClient, objClient, dispatcher, registry, aggregator, cfg.BucketName, log)
	ingestor.Start(ctx, cfg.IngestWorkers)

	server := NewServer(cfg, dbClient, llmClient, ingestor, registry, aggregator, assembler, log)

	return &App{
		DBClient:   dbClient,
		Registry:   registry,
		Aggregator: aggregator,
		Ingestor:   ingestor,
		Server:     server,
		Log:        log,
		llmClient:  llmClient,
	}, nil
}

func (a *App) Close() {
	if a.llmClient != nil {
		_ = a.llmClient.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
