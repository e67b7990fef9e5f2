package executor

import (
	"fmt"
	"strings"

	enginesql "github.com/datapilot-ai/datapilot-engine/pkg/sql"
)

// OptimizationReport is the advisory output of OptimizeQuery.
// OptimizedSQL differs from the input only by additions that cannot change
// result semantics (a LIMIT); join and WHERE logic are never rewritten.
type OptimizationReport struct {
	OptimizedSQL string   `json:"optimized_sql"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

// OptimizeQuery suggests indexes for WHERE-clause columns and inserts a
// LIMIT when the query lacks one.
func OptimizeQuery(sqlQuery string, maxRows int) OptimizationReport {
	report := OptimizationReport{OptimizedSQL: sqlQuery}

	for _, ref := range whereColumnRefs(sqlQuery) {
		report.Suggestions = append(report.Suggestions,
			fmt.Sprintf("consider an index on %s to speed up this filter", ref))
	}

	if !enginesql.HasRowLimit(sqlQuery) && strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sqlQuery)), "SELECT") {
		report.OptimizedSQL = fmt.Sprintf("%s LIMIT %d", strings.TrimRight(sqlQuery, " ;"), maxRows)
		report.Suggestions = append(report.Suggestions,
			fmt.Sprintf("added LIMIT %d to bound the result set", maxRows))
	}

	return report
}

// whereColumnRefs extracts the qualified column references inside the WHERE
// clause, in order of first appearance.
func whereColumnRefs(sqlQuery string) []string {
	upper := strings.ToUpper(sqlQuery)
	whereIdx := strings.Index(upper, "WHERE")
	if whereIdx < 0 {
		return nil
	}
	clause := sqlQuery[whereIdx+len("WHERE"):]
	for _, stopWord := range []string{"ORDER BY", "GROUP BY", "LIMIT"} {
		if stop := strings.Index(strings.ToUpper(clause), stopWord); stop >= 0 {
			clause = clause[:stop]
		}
	}

	var refs []string
	for _, ref := range enginesql.ExtractQualifiedColumns(clause) {
		refs = append(refs, ref[0]+"."+ref[1])
	}
	return refs
}
