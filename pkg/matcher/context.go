package matcher

import (
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/datapilot-ai/datapilot-engine/pkg/metadata"
	"github.com/datapilot-ai/datapilot-engine/pkg/models"
)

// Keyword tables for lightweight intent extraction. This is deliberately
// pattern matching, not ML: the embedding search carries the semantic load,
// the context extraction only tags SQL-relevant intent.
var (
	selectKeywords = []string{"show", "list", "get", "display", "find", "give", "what"}
	filterKeywords = []string{"filter", "where", "only", "with", "from", "having", "whose"}
	sortKeywords   = []string{"sort", "order", "top", "highest", "lowest", "best", "worst", "rank"}

	// Ordered so repeated extraction of the same question yields the same
	// aggregation sequence, and with it the same generated SQL.
	aggregationKeywords = []struct {
		keyword string
		token   string
	}{
		{"total", "sum"},
		{"sum", "sum"},
		{"count", "count"},
		{"number", "count"},
		{"how many", "count"},
		{"average", "avg"},
		{"avg", "avg"},
		{"mean", "avg"},
		{"max", "max"},
		{"maximum", "max"},
		{"highest", "max"},
		{"min", "min"},
		{"minimum", "min"},
		{"lowest", "min"},
	}

	temporalKeywords = []string{"date", "year", "month", "week", "day", "recent", "last", "latest", "today", "yesterday"}

	wordPattern = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
)

// ExtractContext builds a QueryContext from the raw query text and the known
// metadata. Entities and attributes come from direct (case-insensitive) name
// mentions; operations, aggregations and temporal references come from
// keyword detection.
func ExtractContext(query string, meta *metadata.DatasetMetadata) *models.QueryContext {
	lower := strings.ToLower(query)
	words := wordPattern.FindAllString(lower, -1)
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}

	qc := &models.QueryContext{
		BusinessIntent: query,
	}

	if meta != nil {
		for _, t := range meta.Tables {
			if mentions(lower, wordSet, t.TableName) {
				qc.EntitiesMentioned = append(qc.EntitiesMentioned, t.TableName)
			}
		}
		seen := make(map[string]bool)
		for _, c := range meta.Columns {
			name := strings.ToLower(c.ColumnName)
			if seen[name] {
				continue
			}
			if mentions(lower, wordSet, c.ColumnName) {
				seen[name] = true
				qc.AttributesMentioned = append(qc.AttributesMentioned, c.ColumnName)
			}
		}
	}

	if containsAny(wordSet, selectKeywords) {
		qc.Operations = append(qc.Operations, "select")
	}
	if containsAny(wordSet, filterKeywords) {
		qc.Operations = append(qc.Operations, "filter")
	}
	if containsAny(wordSet, sortKeywords) {
		qc.Operations = append(qc.Operations, "sort")
	}
	if len(qc.Operations) == 0 {
		// Every answerable question is at minimum a selection.
		qc.Operations = append(qc.Operations, "select")
	}

	aggSeen := make(map[string]bool)
	for _, kw := range aggregationKeywords {
		matched := false
		if strings.Contains(kw.keyword, " ") {
			matched = strings.Contains(lower, kw.keyword)
		} else {
			matched = wordSet[kw.keyword]
		}
		if matched && !aggSeen[kw.token] {
			aggSeen[kw.token] = true
			qc.Aggregations = append(qc.Aggregations, kw.token)
		}
	}

	for _, keyword := range temporalKeywords {
		if wordSet[keyword] {
			qc.TemporalReferences = append(qc.TemporalReferences, keyword)
		}
	}

	qc.ConfidenceScore = scoreContext(qc)
	return qc
}

// mentions reports whether name appears in the query, either as a whole word
// or as a singular/plural variant.
func mentions(lowerQuery string, wordSet map[string]bool, name string) bool {
	lower := strings.ToLower(name)
	if wordSet[lower] {
		return true
	}
	// "customer" matches "customers" and vice versa, with proper English
	// rules so "categories" still finds "category".
	if wordSet[inflection.Singular(lower)] || wordSet[inflection.Plural(lower)] {
		return true
	}
	// Multi-word names ("order items") only match as substrings.
	if strings.ContainsAny(lower, " _") {
		spaced := strings.ReplaceAll(lower, "_", " ")
		return strings.Contains(lowerQuery, spaced)
	}
	return false
}

func containsAny(wordSet map[string]bool, keywords []string) bool {
	for _, k := range keywords {
		if wordSet[k] {
			return true
		}
	}
	return false
}

// scoreContext estimates extraction certainty in [0,1]. Direct entity
// mentions weigh most; recognized intent keywords add smaller amounts.
func scoreContext(qc *models.QueryContext) float64 {
	score := 0.2
	if len(qc.EntitiesMentioned) > 0 {
		score += 0.4
	}
	if len(qc.AttributesMentioned) > 0 {
		score += 0.2
	}
	if len(qc.Aggregations) > 0 {
		score += 0.1
	}
	if len(qc.Operations) > 1 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}
