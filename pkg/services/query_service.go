package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot-engine/pkg/executor"
	"github.com/datapilot-ai/datapilot-engine/pkg/generator"
	"github.com/datapilot-ai/datapilot-engine/pkg/matcher"
	"github.com/datapilot-ai/datapilot-engine/pkg/metadata"
	"github.com/datapilot-ai/datapilot-engine/pkg/models"
	"github.com/datapilot-ai/datapilot-engine/pkg/planner"
)

// NoMatchMessage is returned when the matcher finds nothing above threshold.
const NoMatchMessage = "No matching metadata found for the query"

// lowConfidenceThreshold marks generation results that get a warning
// attached. Low confidence never blocks execution.
const lowConfidenceThreshold = 0.3

// QueryService orchestrates the full pipeline: match, plan, generate,
// execute with fallbacks. ProcessQuery never returns an error or panics;
// every failure mode is expressed in the QueryResult.
type QueryService interface {
	// ProcessQuery answers a free-text question against the data source.
	ProcessQuery(ctx context.Context, query string, userContext map[string]any) *models.QueryResult

	// History returns the bounded processing history, oldest first.
	History() []ProcessingRecord

	// Close releases the underlying executor connection.
	Close() error
}

// ProcessingRecord is one entry in the orchestrator's processing history.
type ProcessingRecord struct {
	RequestID        string    `json:"request_id"`
	Timestamp        time.Time `json:"timestamp"`
	Query            string    `json:"query"`
	Success          bool      `json:"success"`
	MatchCount       int       `json:"match_count"`
	FallbacksUsed    int       `json:"fallbacks_used"`
	ProcessingTimeMs float64   `json:"processing_time_ms"`
}

type queryService struct {
	matcher   *matcher.EntityMatcher
	planner   *planner.Planner
	generator *generator.Generator
	executor  *executor.Executor
	meta      *metadata.DatasetMetadata
	logger    *zap.Logger
	history   *processingHistory
}

// NewQueryService creates a query service with its pipeline dependencies.
func NewQueryService(
	entityMatcher *matcher.EntityMatcher,
	queryPlanner *planner.Planner,
	sqlGenerator *generator.Generator,
	sqlExecutor *executor.Executor,
	meta *metadata.DatasetMetadata,
	logger *zap.Logger,
) QueryService {
	return &queryService{
		matcher:   entityMatcher,
		planner:   queryPlanner,
		generator: sqlGenerator,
		executor:  sqlExecutor,
		meta:      meta,
		logger:    logger.Named("query-service"),
		history:   newProcessingHistory(processingHistoryLimit),
	}
}

var _ QueryService = (*queryService)(nil)

// ProcessQuery implements QueryService. It is the outermost safety net: an
// unexpected panic anywhere in the pipeline is converted into a failed
// QueryResult.
func (s *queryService) ProcessQuery(ctx context.Context, query string, userContext map[string]any) (result *models.QueryResult) {
	start := time.Now()
	requestID := uuid.New().String()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("query pipeline panic",
				zap.String("request_id", requestID),
				zap.String("query", query),
				zap.Any("panic", r))
			result = &models.QueryResult{
				Success:          false,
				OriginalQuery:    query,
				MetadataMatches:  []models.MetadataMatch{},
				ProcessingTimeMs: msSince(start),
				ErrorMessage:     fmt.Sprintf("internal error: %v", r),
			}
		}
		s.history.record(ProcessingRecord{
			RequestID:        requestID,
			Timestamp:        time.Now(),
			Query:            query,
			Success:          result.Success,
			MatchCount:       len(result.MetadataMatches),
			FallbacksUsed:    len(result.FallbackAttempts),
			ProcessingTimeMs: result.ProcessingTimeMs,
		})
	}()

	result = &models.QueryResult{
		OriginalQuery:   query,
		MetadataMatches: []models.MetadataMatch{},
	}

	qc, matches, err := s.matcher.Match(ctx, query, s.meta, nil)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("entity matching failed: %v", err)
		result.ProcessingTimeMs = msSince(start)
		return result
	}
	result.QueryContext = qc
	result.MetadataMatches = matches

	// No matches is a terminal state, not an execution failure: SQL is
	// never fabricated for entities that do not exist.
	if len(matches) == 0 {
		s.logger.Info("no metadata matches for query", zap.String("query", query))
		result.ErrorMessage = NoMatchMessage
		result.ProcessingTimeMs = msSince(start)
		return result
	}

	plan := s.planner.Plan(qc, matches, s.meta)
	result.QueryPlan = plan

	gen := s.generator.Generate(plan, query)
	result.SQLResult = gen
	if gen.ConfidenceScore < lowConfidenceThreshold {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("low generation confidence (%.2f); results may not match the question", gen.ConfidenceScore))
	}

	execResult, attempts := s.executor.ExecuteWithPlanFallbacks(ctx, gen, plan, s.meta, query)
	result.ExecutionResult = execResult
	result.FallbackAttempts = attempts
	result.Success = execResult.Success
	if !execResult.Success {
		result.ErrorMessage = execResult.ErrorMessage
	}
	result.Warnings = append(result.Warnings, execResult.Warnings...)

	result.ProcessingTimeMs = msSince(start)

	s.logger.Info("processed query",
		zap.String("request_id", requestID),
		zap.String("query", query),
		zap.Bool("success", result.Success),
		zap.Int("matches", len(matches)),
		zap.Int("fallbacks", len(attempts)),
		zap.Float64("elapsed_ms", result.ProcessingTimeMs))

	return result
}

// History implements QueryService.
func (s *queryService) History() []ProcessingRecord {
	return s.history.entriesCopy()
}

// Close implements QueryService.
func (s *queryService) Close() error {
	return s.executor.Close()
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
