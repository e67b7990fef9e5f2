package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/datapilot-ai/datapilot-engine/pkg/adapters/datasource"
	_ "github.com/datapilot-ai/datapilot-engine/pkg/adapters/datasource/mssql"
	_ "github.com/datapilot-ai/datapilot-engine/pkg/adapters/datasource/mysql"
	_ "github.com/datapilot-ai/datapilot-engine/pkg/adapters/datasource/postgres"
	_ "github.com/datapilot-ai/datapilot-engine/pkg/adapters/datasource/sqlite"
	"github.com/datapilot-ai/datapilot-engine/pkg/config"
	"github.com/datapilot-ai/datapilot-engine/pkg/executor"
	"github.com/datapilot-ai/datapilot-engine/pkg/generator"
	"github.com/datapilot-ai/datapilot-engine/pkg/llm"
	"github.com/datapilot-ai/datapilot-engine/pkg/logging"
	"github.com/datapilot-ai/datapilot-engine/pkg/matcher"
	"github.com/datapilot-ai/datapilot-engine/pkg/metadata"
	"github.com/datapilot-ai/datapilot-engine/pkg/planner"
	"github.com/datapilot-ai/datapilot-engine/pkg/services"
	"github.com/datapilot-ai/datapilot-engine/pkg/storage"
	"github.com/datapilot-ai/datapilot-engine/pkg/vector"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	metadataPath := flag.String("metadata", "metadata.yaml", "path to the dataset metadata file")
	userID := flag.String("user", "", "user scope for dataset file resolution")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatalf("usage: %s [flags] <question>", os.Args[0])
	}
	question := flag.Arg(0)

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	meta, err := metadata.LoadFile(*metadataPath)
	if err != nil {
		log.Fatalf("Failed to load metadata: %v", err)
	}

	connector, err := datasource.New(ctx, &datasource.Config{
		Type:              cfg.Datasource.Type,
		Database:          cfg.Datasource.Database,
		Host:              cfg.Datasource.Host,
		Port:              cfg.Datasource.Port,
		User:              cfg.Datasource.User,
		Password:          cfg.Datasource.Password,
		SSLMode:           cfg.Datasource.SSLMode,
		MaxConnections:    cfg.Datasource.MaxConnections,
		ConnectionTimeout: cfg.Datasource.ConnectionTimeout,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create connector: %v", err)
	}

	// File-backed sources get their tables materialized before querying.
	if loader, ok := connector.(datasource.DatasetLoader); ok {
		resolver := storage.NewLocalResolver(cfg.Storage.DatasetDir)
		datasets := services.NewDatasetService(resolver, loader, logger)
		if err := datasets.EnsureTables(ctx, meta, *userID); err != nil {
			log.Fatalf("Failed to load datasets: %v", err)
		}
	}

	embedClient, err := llm.NewClient(&llm.Config{
		Endpoint: cfg.Embedding.Endpoint,
		Model:    cfg.Embedding.Model,
		APIKey:   cfg.Embedding.APIKey,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}
	embedder := llm.NewCachingClient(embedClient, 0)

	index, err := vector.OpenSQLiteStore(cfg.Vector.Path)
	if err != nil {
		log.Fatalf("Failed to open vector index: %v", err)
	}
	defer index.Close() //nolint:errcheck

	entityMatcher := matcher.NewEntityMatcher(
		embedder, index, meta.DataSource,
		cfg.Matcher.SimilarityThreshold, cfg.Matcher.MatchLimit, logger)
	if err := entityMatcher.IndexMetadata(ctx, meta); err != nil {
		log.Fatalf("Failed to index metadata: %v", err)
	}

	engine := services.NewQueryService(
		entityMatcher,
		planner.NewPlanner(cfg.Executor.MaxRows, logger),
		generator.NewGenerator(logger),
		executor.New(connector, executor.Config{
			MaxExecutionTime:        time.Duration(cfg.Executor.MaxExecutionTime) * time.Second,
			MaxExecutionTimeCeiling: time.Duration(cfg.Executor.MaxExecutionTimeCeiling) * time.Second,
			MaxRows:                 cfg.Executor.MaxRows,
		}, nil, logger),
		meta,
		logger,
	)
	defer engine.Close() //nolint:errcheck

	result := engine.ProcessQuery(ctx, question, nil)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(out))
}
