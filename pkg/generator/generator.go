// Package generator renders a QueryPlan into executable SQL with a
// confidence score and complexity classification.
package generator

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot-engine/pkg/models"
)

// ProbeSQL is generated for plans with no primary tables. It is harmless on
// every supported backend and signals "nothing to query" without crashing.
const ProbeSQL = "SELECT 1 AS test_query"

// defaultDiscount is applied to the plan confidence when generation had to
// fall back to defaults (no explicit columns detected).
const defaultDiscount = 0.8

// Generator assembles SQL from query plans. Assembly order is fixed:
// SELECT, FROM, JOINs, WHERE, ORDER BY, LIMIT.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a generator.
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{logger: logger.Named("generator")}
}

// Generate renders the plan. It never fails; an empty plan produces the
// probe query with zero confidence.
func (g *Generator) Generate(plan *models.QueryPlan, originalQuery string) *models.SQLGenerationResult {
	if plan == nil || len(plan.PrimaryTables) == 0 {
		return &models.SQLGenerationResult{
			SQL:             ProbeSQL,
			Explanation:     "No tables were matched for this query; generated a probe statement instead.",
			ConfidenceScore: 0,
			ComplexityLevel: models.ComplexitySimple,
		}
	}

	var sb strings.Builder

	// SELECT: aggregations take precedence over explicit columns, which take
	// precedence over anchor.*.
	sb.WriteString("SELECT ")
	confidence := plan.ConfidenceScore
	switch {
	case len(plan.Aggregations) > 0:
		sb.WriteString(strings.Join(plan.Aggregations, ", "))
	case len(plan.SelectColumns) > 0:
		sb.WriteString(strings.Join(plan.SelectColumns, ", "))
		if isDefaultSelection(plan) {
			confidence *= defaultDiscount
		}
	default:
		sb.WriteString(plan.AnchorTable() + ".*")
		confidence *= defaultDiscount
	}

	sb.WriteString(" FROM ")
	sb.WriteString(plan.PrimaryTables[0])

	for _, join := range plan.RequiredJoins {
		fmt.Fprintf(&sb, " %s JOIN %s ON %s.%s = %s.%s",
			join.Type, join.RightTable,
			join.LeftTable, join.LeftColumn,
			join.RightTable, join.RightColumn)
	}

	if len(plan.WhereConditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(plan.WhereConditions, " AND "))
	}

	if len(plan.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(plan.OrderBy, ", "))
	}

	if plan.RowLimit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", plan.RowLimit)
	}

	sql := sb.String()
	result := &models.SQLGenerationResult{
		SQL:             sql,
		Explanation:     explain(plan, originalQuery),
		ConfidenceScore: confidence,
		ComplexityLevel: classifyComplexity(plan),
	}

	g.logger.Debug("generated SQL",
		zap.String("complexity", string(result.ComplexityLevel)),
		zap.Float64("confidence", result.ConfidenceScore))

	return result
}

// isDefaultSelection reports whether the select list is just the anchor.*
// default rather than columns the matcher actually detected.
func isDefaultSelection(plan *models.QueryPlan) bool {
	return len(plan.SelectColumns) == 1 &&
		plan.SelectColumns[0] == plan.AnchorTable()+".*"
}

// classifyComplexity applies a simple rubric: joins plus aggregations plus
// subselect-like patterns. 0 is simple, 1-2 moderate, 3+ complex.
func classifyComplexity(plan *models.QueryPlan) models.ComplexityLevel {
	score := len(plan.RequiredJoins) + len(plan.Aggregations)
	for _, cond := range plan.WhereConditions {
		if strings.Contains(strings.ToUpper(cond), "SELECT") {
			score++
		}
	}

	switch {
	case score == 0:
		return models.ComplexitySimple
	case score <= 2:
		return models.ComplexityModerate
	default:
		return models.ComplexityComplex
	}
}

func explain(plan *models.QueryPlan, originalQuery string) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Querying %s", strings.Join(plan.PrimaryTables, ", ")))
	if len(plan.Aggregations) > 0 {
		parts = append(parts, fmt.Sprintf("computing %s", strings.Join(plan.Aggregations, ", ")))
	}
	if len(plan.WhereConditions) > 0 {
		parts = append(parts, fmt.Sprintf("filtered by %s", strings.Join(plan.WhereConditions, " AND ")))
	}
	if originalQuery != "" {
		parts = append(parts, fmt.Sprintf("for the question %q", originalQuery))
	}
	return strings.Join(parts, ", ") + "."
}
