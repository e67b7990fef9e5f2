// Package planner turns matched entities and a query context into a
// dialect-independent QueryPlan.
package planner

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot-engine/pkg/metadata"
	"github.com/datapilot-ai/datapilot-engine/pkg/models"
	enginesql "github.com/datapilot-ai/datapilot-engine/pkg/sql"
)

// Planner builds query plans. It never fails: a request with no usable
// tables produces a plan with empty PrimaryTables, which the generator
// degrades to a probe query.
type Planner struct {
	maxRows int
	logger  *zap.Logger
}

// NewPlanner creates a planner. maxRows becomes the implicit row cap on
// every plan; the planner never produces an unbounded query.
func NewPlanner(maxRows int, logger *zap.Logger) *Planner {
	return &Planner{
		maxRows: maxRows,
		logger:  logger.Named("planner"),
	}
}

// Plan builds a QueryPlan from the matched entities and extracted context.
func (p *Planner) Plan(qc *models.QueryContext, matches []models.MetadataMatch, meta *metadata.DatasetMetadata) *models.QueryPlan {
	plan := &models.QueryPlan{
		RowLimit: p.maxRows,
	}

	anchor, anchorScore := selectAnchor(matches)
	if anchor == "" {
		p.logger.Debug("no anchor table resolvable from matches",
			zap.Int("matches", len(matches)))
		plan.ConfidenceScore = 0
		return plan
	}
	plan.PrimaryTables = append(plan.PrimaryTables, anchor)

	// Additional mentioned tables join against the anchor when relationship
	// metadata connects them.
	for _, entity := range qc.EntitiesMentioned {
		if !strings.EqualFold(entity, anchor) && meta != nil && meta.HasTable(entity) {
			plan.PrimaryTables = appendUnique(plan.PrimaryTables, entity)
		}
	}
	if len(plan.PrimaryTables) > 1 && meta != nil {
		for _, rel := range meta.RelationshipsBetween(plan.PrimaryTables) {
			joinType := rel.JoinType
			if joinType == "" {
				joinType = "INNER"
			}
			plan.RequiredJoins = append(plan.RequiredJoins, models.JoinSpec{
				Type:        strings.ToUpper(joinType),
				LeftTable:   rel.LeftTable,
				LeftColumn:  rel.LeftColumn,
				RightTable:  rel.RightTable,
				RightColumn: rel.RightColumn,
			})
		}
		// Tables we cannot join stay out of the plan rather than producing
		// a cartesian product.
		plan.PrimaryTables = joinableTables(plan.PrimaryTables, plan.RequiredJoins)
	}

	plan.SelectColumns = p.selectColumns(qc, anchor, meta)
	plan.Aggregations = p.aggregations(qc, anchor, meta)
	plan.WhereConditions = p.extractConditions(qc, anchor, meta)

	if contains(qc.Operations, "sort") && len(qc.AttributesMentioned) > 0 {
		plan.OrderBy = append(plan.OrderBy, qualify(anchor, qc.AttributesMentioned[0], meta)+" DESC")
	}

	plan.ConfidenceScore = combineConfidence(qc.ConfidenceScore, anchorScore)
	plan.AlternativePlans = p.alternatives(matches, anchor)

	p.logger.Debug("built query plan",
		zap.String("anchor", anchor),
		zap.Int("joins", len(plan.RequiredJoins)),
		zap.Int("aggregations", len(plan.Aggregations)),
		zap.Float64("confidence", plan.ConfidenceScore))

	return plan
}

// selectAnchor prefers the highest-scored table match; otherwise derives a
// table from the top match's qualified name (table.column -> table).
func selectAnchor(matches []models.MetadataMatch) (string, float64) {
	for _, m := range matches {
		if m.EntityType == models.EntityTypeTable {
			return m.EntityName, m.SimilarityScore
		}
	}
	for _, m := range matches {
		if table, _, ok := strings.Cut(m.EntityName, "."); ok && table != "" {
			return table, m.SimilarityScore
		}
	}
	return "", 0
}

func (p *Planner) selectColumns(qc *models.QueryContext, anchor string, meta *metadata.DatasetMetadata) []string {
	var cols []string
	for _, attr := range qc.AttributesMentioned {
		if meta == nil || meta.HasColumn(anchor, attr) {
			cols = append(cols, qualify(anchor, attr, meta))
		}
	}
	if len(cols) == 0 {
		cols = append(cols, anchor+".*")
	}
	return cols
}

// aggregations maps detected tokens to SQL aggregate expressions. COUNT
// needs no target column; the rest aggregate the first mentioned attribute
// belonging to the anchor, and are dropped when no target is resolvable.
func (p *Planner) aggregations(qc *models.QueryContext, anchor string, meta *metadata.DatasetMetadata) []string {
	if len(qc.Aggregations) == 0 {
		return nil
	}

	target := ""
	for _, attr := range qc.AttributesMentioned {
		if meta == nil || meta.HasColumn(anchor, attr) {
			target = attr
			break
		}
	}

	var aggs []string
	for _, token := range qc.Aggregations {
		upper := strings.ToUpper(token)
		if token == "count" {
			aggs = append(aggs, "COUNT(*) AS total_count")
			continue
		}
		if target == "" {
			continue
		}
		aggs = append(aggs, fmt.Sprintf("%s(%s) AS %s_%s", upper, qualify(anchor, target, meta), token, target))
	}
	return aggs
}

// alternatives returns one lower-confidence plan per remaining table match.
// Alternates are never auto-executed.
func (p *Planner) alternatives(matches []models.MetadataMatch, anchor string) []*models.QueryPlan {
	var alts []*models.QueryPlan
	for _, m := range matches {
		if m.EntityType != models.EntityTypeTable || strings.EqualFold(m.EntityName, anchor) {
			continue
		}
		alts = append(alts, &models.QueryPlan{
			PrimaryTables:   []string{m.EntityName},
			SelectColumns:   []string{m.EntityName + ".*"},
			RowLimit:        p.maxRows,
			ConfidenceScore: m.SimilarityScore * 0.8,
		})
		if len(alts) == 2 {
			break
		}
	}
	return alts
}

var quotedValuePattern = regexp.MustCompile(`'([^']+)'|"([^"]+)"`)

// extractConditions finds literal filter values in the query text. Quoted
// strings and trailing capitalized words become equality conditions against
// the single mentioned attribute when one exists. This is a heuristic; the
// fallback chain absorbs conditions that do not hold up.
//
// Extracted values are the only fragment of the final SQL copied verbatim
// from user input, so they are screened for injection patterns before being
// quoted into the plan. Flagged values drop the condition entirely.
func (p *Planner) extractConditions(qc *models.QueryContext, anchor string, meta *metadata.DatasetMetadata) []string {
	if !contains(qc.Operations, "filter") || len(qc.AttributesMentioned) != 1 {
		return nil
	}
	column := qualify(anchor, qc.AttributesMentioned[0], meta)

	if m := quotedValuePattern.FindStringSubmatch(qc.BusinessIntent); m != nil {
		value := m[1]
		if value == "" {
			value = m[2]
		}
		return p.condition(column, value)
	}

	words := strings.Fields(qc.BusinessIntent)
	if len(words) > 1 {
		last := strings.Trim(words[len(words)-1], ".,?!")
		if len(last) > 1 && last[0] >= 'A' && last[0] <= 'Z' && !strings.EqualFold(last, words[0]) {
			return p.condition(column, last)
		}
	}
	return nil
}

func (p *Planner) condition(column, value string) []string {
	if check := enginesql.ScreenFilterValue(value); check != nil {
		p.logger.Warn("dropping filter value flagged as injection",
			zap.String("fingerprint", check.Fingerprint))
		return nil
	}
	return []string{fmt.Sprintf("%s = '%s'", column, escapeSingleQuotes(value))}
}

func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// qualify prefixes a column with the anchor table when the column belongs to
// it unambiguously.
func qualify(anchor, column string, meta *metadata.DatasetMetadata) string {
	if strings.Contains(column, ".") {
		return column
	}
	if meta == nil || meta.HasColumn(anchor, column) {
		return anchor + "." + column
	}
	return column
}

func combineConfidence(contextScore, matchScore float64) float64 {
	combined := 0.5*contextScore + 0.5*matchScore
	if combined > 1 {
		combined = 1
	}
	return combined
}

func joinableTables(tables []string, joins []models.JoinSpec) []string {
	if len(joins) == 0 {
		return tables[:1]
	}
	joined := map[string]bool{strings.ToLower(tables[0]): true}
	for _, j := range joins {
		joined[strings.ToLower(j.LeftTable)] = true
		joined[strings.ToLower(j.RightTable)] = true
	}
	var kept []string
	for _, t := range tables {
		if joined[strings.ToLower(t)] {
			kept = append(kept, t)
		}
	}
	return kept
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if strings.EqualFold(existing, item) {
			return list
		}
	}
	return append(list, item)
}

func contains(list []string, item string) bool {
	for _, existing := range list {
		if existing == item {
			return true
		}
	}
	return false
}
