package executor

import (
	"fmt"
	"strings"

	"github.com/datapilot-ai/datapilot-engine/pkg/metadata"
	enginesql "github.com/datapilot-ai/datapilot-engine/pkg/sql"
)

// ValidationReport is the advisory output of ValidateSQL. Errors are
// blocking in spirit (unknown objects); warnings are style and safety
// advisories. The caller decides whether to execute anyway.
type ValidationReport struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// maxAdvisableJoins is the join count above which a warning is raised.
const maxAdvisableJoins = 3

// ValidateSQL checks referenced tables and columns against the metadata and
// raises safety advisories. Extraction is regex-based, not a SQL parse; the
// report is advisory and decoupled from execution.
func ValidateSQL(sqlQuery string, meta *metadata.DatasetMetadata) ValidationReport {
	report := ValidationReport{IsValid: true}

	if normalized := enginesql.ValidateAndNormalize(sqlQuery); normalized.Error != nil {
		report.Errors = append(report.Errors, normalized.Error.Error())
		report.IsValid = false
		return report
	}

	tables := enginesql.ExtractTables(sqlQuery)
	knownTables := make(map[string]bool)
	if meta != nil {
		for _, table := range tables {
			if meta.HasTable(table) {
				knownTables[strings.ToLower(table)] = true
			} else {
				report.Errors = append(report.Errors,
					fmt.Sprintf("table %q is not present in the dataset metadata", table))
			}
		}

		for _, ref := range enginesql.ExtractQualifiedColumns(sqlQuery) {
			table, column := ref[0], ref[1]
			// Only check references against tables we know about; aliases
			// and expression prefixes are beyond regex extraction.
			if !knownTables[strings.ToLower(table)] || column == "*" {
				continue
			}
			if !meta.HasColumn(table, column) {
				report.Errors = append(report.Errors,
					fmt.Sprintf("column %q does not exist on table %q", column, table))
			}
		}
	}

	if !enginesql.HasWhereClause(sqlQuery) {
		report.Warnings = append(report.Warnings, "query has no WHERE clause and may scan the whole table")
	}
	if !enginesql.HasRowLimit(sqlQuery) {
		report.Warnings = append(report.Warnings, "query has no LIMIT clause and may return unbounded results")
	}
	if enginesql.IsSelectStar(sqlQuery) {
		report.Warnings = append(report.Warnings, "SELECT * returns all columns; prefer an explicit column list")
	}
	if joins := enginesql.CountJoins(sqlQuery); joins > maxAdvisableJoins {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("query has %d joins; consider splitting it", joins))
	}

	report.IsValid = len(report.Errors) == 0
	return report
}
