// Package executor runs generated SQL against a backend connector and walks
// an ordered list of fallback strategies when the primary attempt fails. The
// fallback state machine is engine-agnostic: it operates purely on SQL
// strings and execution results.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot-engine/pkg/adapters/datasource"
	"github.com/datapilot-ai/datapilot-engine/pkg/logging"
	"github.com/datapilot-ai/datapilot-engine/pkg/metadata"
	"github.com/datapilot-ai/datapilot-engine/pkg/models"
)

// FeedbackSink receives execution outcomes for learning. Implementations
// are advisory side-collaborators; the executor works without one.
type FeedbackSink interface {
	RecordOutcome(originalQuery, sqlExecuted string, success bool, executionTimeMs float64)
}

// Config holds executor resource ceilings.
type Config struct {
	// MaxExecutionTime bounds each attempt. Zero selects 30s.
	MaxExecutionTime time.Duration
	// MaxExecutionTimeCeiling bounds the doubled timeout used by the
	// extended_timeout strategy. Zero selects 60s.
	MaxExecutionTimeCeiling time.Duration
	// MaxRows caps rows returned by any execution. Zero selects 10000.
	MaxRows int
}

func (c *Config) applyDefaults() {
	if c.MaxExecutionTime <= 0 {
		c.MaxExecutionTime = 30 * time.Second
	}
	if c.MaxExecutionTimeCeiling <= 0 {
		c.MaxExecutionTimeCeiling = 60 * time.Second
	}
	if c.MaxRows <= 0 {
		c.MaxRows = 10000
	}
}

// Executor owns one backend connection and executes SQL with fallbacks.
// It is not safe for concurrent use; multi-tenant deployments instantiate
// one Executor per logical database scope.
type Executor struct {
	connector datasource.Connector
	cfg       Config
	logger    *zap.Logger
	history   *History
	feedback  FeedbackSink
}

// New creates an executor over the given connector.
// feedback may be nil.
func New(connector datasource.Connector, cfg Config, feedback FeedbackSink, logger *zap.Logger) *Executor {
	cfg.applyDefaults()
	return &Executor{
		connector: connector,
		cfg:       cfg,
		logger:    logger.Named("executor"),
		history:   NewHistory(historyLimit),
		feedback:  feedback,
	}
}

// History returns the executor's bounded execution history.
func (e *Executor) History() *History {
	return e.history
}

// Close releases the backend connection.
func (e *Executor) Close() error {
	return e.connector.Close()
}

// ExecuteSQL is the pure execution primitive: one statement, one timeout,
// rows truncated to the configured cap. Backend errors are converted into a
// failed ExecutionResult rather than returned. Execution time is measured
// regardless of outcome.
func (e *Executor) ExecuteSQL(ctx context.Context, sqlQuery string) *models.ExecutionResult {
	return e.executeWithTimeout(ctx, sqlQuery, e.cfg.MaxExecutionTime)
}

func (e *Executor) executeWithTimeout(ctx context.Context, sqlQuery string, timeout time.Duration) (result *models.ExecutionResult) {
	// The connector must never crash the pipeline; a panicking driver is
	// reported as a failed execution.
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("connector panic during execution",
				zap.String("sql", logging.SanitizeQuery(sqlQuery)),
				zap.Any("panic", r))
			result = failedResult(sqlQuery, fmt.Sprintf("internal execution error: %v", r), msSince(start))
		}
	}()

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := e.connector.ExecuteQuery(execCtx, sqlQuery)
	elapsed := msSince(start)
	if err != nil {
		e.logger.Debug("execution failed",
			zap.String("sql", logging.SanitizeQuery(sqlQuery)),
			zap.Float64("elapsed_ms", elapsed),
			zap.String("error", logging.SanitizeError(err)))
		return failedResult(sqlQuery, err.Error(), elapsed)
	}

	result = &models.ExecutionResult{
		Success:         true,
		Data:            rows.Data,
		ColumnNames:     rows.Columns,
		RowCount:        len(rows.Data),
		ExecutionTimeMs: elapsed,
		SQLExecuted:     sqlQuery,
	}
	if result.Data == nil {
		result.Data = make([]map[string]any, 0)
	}

	if len(result.Data) > e.cfg.MaxRows {
		result.Data = result.Data[:e.cfg.MaxRows]
		result.RowCount = e.cfg.MaxRows
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Results truncated to %d rows", e.cfg.MaxRows))
	}

	return result
}

func failedResult(sqlQuery, errMsg string, elapsedMs float64) *models.ExecutionResult {
	return &models.ExecutionResult{
		Success:         false,
		Data:            make([]map[string]any, 0),
		ColumnNames:     []string{},
		RowCount:        0,
		ExecutionTimeMs: elapsedMs,
		SQLExecuted:     sqlQuery,
		ErrorMessage:    errMsg,
	}
}

// ExecuteWithFallbacks runs the generated SQL and, on failure, walks the
// basic fallback chain (extended_timeout, add_limit, retry) in fixed order.
// The returned attempt slice is the full audit trail; it is empty when the
// primary attempt succeeds. On exhaustion the last failure is returned.
func (e *Executor) ExecuteWithFallbacks(ctx context.Context, gen *models.SQLGenerationResult, originalQuery string) (*models.ExecutionResult, []models.FallbackAttempt) {
	return e.run(ctx, gen, originalQuery, basicStrategies())
}

// ExecuteWithPlanFallbacks is the plan-aware entry point: in addition to the
// basic chain it can simplify the query, drop joins, substitute tables or
// columns, repair syntax from the error text, and finally degrade to a bare
// SELECT, using the plan and metadata to construct replacement SQL.
func (e *Executor) ExecuteWithPlanFallbacks(ctx context.Context, gen *models.SQLGenerationResult, plan *models.QueryPlan, meta *metadata.DatasetMetadata, originalQuery string) (*models.ExecutionResult, []models.FallbackAttempt) {
	return e.run(ctx, gen, originalQuery, planStrategies(plan, meta))
}

func (e *Executor) run(ctx context.Context, gen *models.SQLGenerationResult, originalQuery string, strategies []strategy) (*models.ExecutionResult, []models.FallbackAttempt) {
	primarySQL := gen.SQL
	attempts := make([]models.FallbackAttempt, 0)

	result := e.executeWithTimeout(ctx, primarySQL, e.cfg.MaxExecutionTime)
	if result.Success {
		e.record(originalQuery, primarySQL, "primary_sql", result)
		return result, attempts
	}

	attempts = append(attempts, models.FallbackAttempt{
		AttemptNumber:   0,
		Strategy:        "primary_sql",
		SQLAttempted:    primarySQL,
		Success:         false,
		ErrorMessage:    result.ErrorMessage,
		ExecutionTimeMs: result.ExecutionTimeMs,
	})

	st := &state{
		primarySQL:  primarySQL,
		lastSQL:     primarySQL,
		lastError:   result.ErrorMessage,
		baseTimeout: e.cfg.MaxExecutionTime,
		ceiling:     e.cfg.MaxExecutionTimeCeiling,
		maxRows:     e.cfg.MaxRows,
		tried:       map[string]bool{primarySQL: true},
	}

	lastResult := result
	for _, s := range strategies {
		candidateSQL, timeout, ok := s.rewrite(st)
		if !ok {
			continue
		}
		// No-op guard: a strategy only runs if it changes the SQL text,
		// except for deliberate retries of the same statement.
		if st.tried[candidateSQL] && !s.allowRepeat {
			continue
		}
		st.tried[candidateSQL] = true

		e.logger.Info("trying fallback strategy",
			zap.String("strategy", s.name),
			zap.String("sql", logging.SanitizeQuery(candidateSQL)))

		attemptResult := e.executeWithTimeout(ctx, candidateSQL, timeout)
		attempts = append(attempts, models.FallbackAttempt{
			AttemptNumber:   len(attempts),
			Strategy:        s.name,
			SQLAttempted:    candidateSQL,
			Success:         attemptResult.Success,
			ErrorMessage:    attemptResult.ErrorMessage,
			ExecutionTimeMs: attemptResult.ExecutionTimeMs,
		})

		if attemptResult.Success {
			e.record(originalQuery, candidateSQL, s.name, attemptResult)
			return attemptResult, attempts
		}

		st.lastSQL = candidateSQL
		st.lastError = attemptResult.ErrorMessage
		lastResult = attemptResult
	}

	// All strategies exhausted: the last failure is returned, not the
	// first. The full audit trail tells the caller what was tried.
	e.record(originalQuery, lastResult.SQLExecuted, "exhausted", lastResult)
	return lastResult, attempts
}

func (e *Executor) record(originalQuery, sqlExecuted, strategy string, result *models.ExecutionResult) {
	e.history.Record(HistoryEntry{
		Timestamp:       time.Now(),
		OriginalQuery:   originalQuery,
		SQLExecuted:     sqlExecuted,
		Strategy:        strategy,
		Success:         result.Success,
		RowCount:        result.RowCount,
		ExecutionTimeMs: result.ExecutionTimeMs,
	})
	if e.feedback != nil && originalQuery != "" {
		e.feedback.RecordOutcome(originalQuery, sqlExecuted, result.Success, result.ExecutionTimeMs)
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
