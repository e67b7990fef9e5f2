package sql

import (
	"regexp"
	"strings"
)

// StatementType classifies a SQL statement by its leading keyword.
type StatementType string

const (
	TypeSelect  StatementType = "SELECT"
	TypeInsert  StatementType = "INSERT"
	TypeUpdate  StatementType = "UPDATE"
	TypeDelete  StatementType = "DELETE"
	TypeDDL     StatementType = "DDL"
	TypeUnknown StatementType = "UNKNOWN"
)

var (
	tableRefPattern  = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)?)`)
	columnRefPattern = regexp.MustCompile(`\b([a-zA-Z_][a-zA-Z0-9_]*)\.([a-zA-Z_][a-zA-Z0-9_]*)\b`)
	limitPattern     = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
	topPattern       = regexp.MustCompile(`(?i)\bSELECT\s+TOP\s*\(?\s*\d+`)
	modifyingCTE     = regexp.MustCompile(`(?i)\bAS\s*\(\s*(INSERT|UPDATE|DELETE)\b`)
	aggFuncPattern   = regexp.MustCompile(`(?i)\b(SUM|COUNT|AVG|MAX|MIN)\s*\(`)
	joinPattern      = regexp.MustCompile(`(?i)\bJOIN\b`)
	wherePattern     = regexp.MustCompile(`(?i)\bWHERE\b`)
	selectStarWild   = regexp.MustCompile(`(?i)\bSELECT\s+\*`)
)

// DetectType determines the statement type from the first keyword.
// CTEs with data-modifying bodies are treated as unknown.
func DetectType(sql string) StatementType {
	normalized := strings.ToUpper(strings.TrimSpace(sql))

	switch {
	case strings.HasPrefix(normalized, "SELECT"):
		return TypeSelect
	case strings.HasPrefix(normalized, "WITH"):
		if modifyingCTE.MatchString(sql) {
			return TypeUnknown
		}
		return TypeSelect
	case strings.HasPrefix(normalized, "INSERT"):
		return TypeInsert
	case strings.HasPrefix(normalized, "UPDATE"):
		return TypeUpdate
	case strings.HasPrefix(normalized, "DELETE"):
		return TypeDelete
	case strings.HasPrefix(normalized, "CREATE"),
		strings.HasPrefix(normalized, "ALTER"),
		strings.HasPrefix(normalized, "DROP"),
		strings.HasPrefix(normalized, "TRUNCATE"):
		return TypeDDL
	default:
		return TypeUnknown
	}
}

// ExtractTables returns the distinct table names referenced in FROM and JOIN
// clauses, in order of first appearance.
func ExtractTables(sql string) []string {
	matches := tableRefPattern.FindAllStringSubmatch(sql, -1)
	seen := make(map[string]bool)
	var tables []string
	for _, match := range matches {
		if len(match) < 2 {
			continue
		}
		name := strings.ToLower(match[1])
		if !seen[name] {
			seen[name] = true
			tables = append(tables, match[1])
		}
	}
	return tables
}

// ExtractQualifiedColumns returns the distinct table.column references in the
// statement, in order of first appearance. Table aliases are returned as
// written; callers resolve them against known tables.
func ExtractQualifiedColumns(sql string) [][2]string {
	matches := columnRefPattern.FindAllStringSubmatch(sql, -1)
	seen := make(map[string]bool)
	var refs [][2]string
	for _, match := range matches {
		key := strings.ToLower(match[1] + "." + match[2])
		if !seen[key] {
			seen[key] = true
			refs = append(refs, [2]string{match[1], match[2]})
		}
	}
	return refs
}

// HasRowLimit reports whether the statement already bounds its result set
// with LIMIT or SELECT TOP.
func HasRowLimit(sql string) bool {
	return limitPattern.MatchString(sql) || topPattern.MatchString(sql)
}

// HasWhereClause reports whether the statement has a WHERE clause.
func HasWhereClause(sql string) bool {
	return wherePattern.MatchString(sql)
}

// CountJoins returns the number of JOIN keywords in the statement.
func CountJoins(sql string) int {
	return len(joinPattern.FindAllString(sql, -1))
}

// CountAggregations returns the number of aggregate function calls.
func CountAggregations(sql string) int {
	return len(aggFuncPattern.FindAllString(sql, -1))
}

// IsSelectStar reports whether the statement selects all columns unqualified.
func IsSelectStar(sql string) bool {
	return selectStarWild.MatchString(sql)
}
