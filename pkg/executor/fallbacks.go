package executor

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/datapilot-ai/datapilot-engine/pkg/metadata"
	"github.com/datapilot-ai/datapilot-engine/pkg/models"
	enginesql "github.com/datapilot-ai/datapilot-engine/pkg/sql"
)

// fallbackLimit is the row cap appended by the add_limit strategy.
const fallbackLimit = 100

// state carries what a strategy needs to construct its candidate SQL.
type state struct {
	primarySQL  string
	lastSQL     string
	lastError   string
	baseTimeout time.Duration
	ceiling     time.Duration
	maxRows     int
	tried       map[string]bool
}

// strategy is one named, deterministic rewrite-or-retry tactic.
//
// rewrite returns the candidate SQL, the timeout for the attempt, and
// whether the strategy applies at all. allowRepeat marks strategies whose
// point is re-executing already-tried SQL (timeout extension, bare retry);
// all others are skipped when their output matches an earlier attempt.
type strategy struct {
	name        string
	allowRepeat bool
	rewrite     func(st *state) (string, time.Duration, bool)
}

// basicStrategies is the fixed chain for direct SQL execution. The order is
// deliberate and not configurable per call: deterministic behavior matters
// more than per-caller tuning.
func basicStrategies() []strategy {
	return []strategy{
		{
			// Transient slow-query conditions, not syntax errors.
			name:        "extended_timeout",
			allowRepeat: true,
			rewrite: func(st *state) (string, time.Duration, bool) {
				timeout := st.baseTimeout * 2
				if timeout > st.ceiling {
					timeout = st.ceiling
				}
				return st.primarySQL, timeout, true
			},
		},
		{
			// Unbounded result sets that blow the timeout or memory.
			name: "add_limit",
			rewrite: func(st *state) (string, time.Duration, bool) {
				if enginesql.HasRowLimit(st.primarySQL) {
					return "", 0, false
				}
				return fmt.Sprintf("%s LIMIT %d", strings.TrimRight(st.primarySQL, " ;"), fallbackLimit), st.baseTimeout, true
			},
		},
		{
			// Transient connection hiccups.
			name:        "retry",
			allowRepeat: true,
			rewrite: func(st *state) (string, time.Duration, bool) {
				return st.primarySQL, st.baseTimeout, true
			},
		},
	}
}

// planStrategies extends the basic chain with rewrites that need the query
// plan and metadata to construct replacement SQL.
func planStrategies(plan *models.QueryPlan, meta *metadata.DatasetMetadata) []strategy {
	anchor := ""
	if plan != nil {
		anchor = plan.AnchorTable()
	}

	extra := []strategy{
		{
			name: "simplify_query",
			rewrite: func(st *state) (string, time.Duration, bool) {
				simplified := simplifySQL(st.primarySQL)
				if simplified == st.primarySQL {
					return "", 0, false
				}
				return simplified, st.baseTimeout, true
			},
		},
		{
			name: "remove_joins",
			rewrite: func(st *state) (string, time.Duration, bool) {
				if anchor == "" || enginesql.CountJoins(st.primarySQL) == 0 {
					return "", 0, false
				}
				return singleTableSQL(st.primarySQL, anchor, st.maxRows), st.baseTimeout, true
			},
		},
		{
			name: "table_fallback",
			rewrite: func(st *state) (string, time.Duration, bool) {
				if meta == nil {
					return "", 0, false
				}
				for _, table := range meta.TableNames() {
					if !strings.EqualFold(table, anchor) {
						return fmt.Sprintf("SELECT * FROM %s LIMIT 10", table), st.baseTimeout, true
					}
				}
				return "", 0, false
			},
		},
		{
			name: "column_fallback",
			rewrite: func(st *state) (string, time.Duration, bool) {
				if anchor == "" || meta == nil {
					return "", 0, false
				}
				cols := meta.ColumnsOf(anchor)
				if len(cols) == 0 {
					return "", 0, false
				}
				if len(cols) > 5 {
					cols = cols[:5]
				}
				return fmt.Sprintf("SELECT %s FROM %s LIMIT %d",
					strings.Join(cols, ", "), anchor, fallbackLimit), st.baseTimeout, true
			},
		},
		{
			name: "syntax_correction",
			rewrite: func(st *state) (string, time.Duration, bool) {
				corrected := correctSyntax(st.primarySQL, st.lastError)
				if corrected == st.primarySQL {
					return "", 0, false
				}
				return corrected, st.baseTimeout, true
			},
		},
		{
			name: "basic_select",
			rewrite: func(st *state) (string, time.Duration, bool) {
				if anchor == "" {
					return "SELECT 1 AS test_query", st.baseTimeout, true
				}
				return fmt.Sprintf("SELECT * FROM %s LIMIT 10", anchor), st.baseTimeout, true
			},
		},
	}

	return append(basicStrategies(), extra...)
}

var (
	subqueryPattern    = regexp.MustCompile(`(?is)\(\s*SELECT\b[^()]*\)`)
	casePattern        = regexp.MustCompile(`(?is)\bCASE\b.*?\bEND\b`)
	groupHavingPattern = regexp.MustCompile(`(?is)\bGROUP\s+BY\b.*?(\bORDER\s+BY\b|\bLIMIT\b|$)`)
	dottedColPattern   = regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]*\.[a-zA-Z_][a-zA-Z0-9_*]*`)
	missingColumnHints = []string{"does not exist", "no such column", "unknown column", "invalid column"}
)

// simplifySQL strips subqueries, CASE expressions, and GROUP BY/HAVING
// blocks. The result may over-select; that is acceptable for a rescue
// attempt.
func simplifySQL(sql string) string {
	simplified := subqueryPattern.ReplaceAllString(sql, "NULL")
	simplified = casePattern.ReplaceAllString(simplified, "NULL")
	simplified = groupHavingPattern.ReplaceAllString(simplified, "$1")
	return strings.Join(strings.Fields(simplified), " ")
}

// singleTableSQL collapses a join query to a single-table SELECT, keeping
// only WHERE conditions that reference the kept table.
func singleTableSQL(sql, table string, maxRows int) string {
	var conditions []string
	if whereIdx := strings.Index(strings.ToUpper(sql), "WHERE"); whereIdx >= 0 {
		whereClause := sql[whereIdx+len("WHERE"):]
		for _, stopWord := range []string{"ORDER BY", "GROUP BY", "LIMIT"} {
			if stop := strings.Index(strings.ToUpper(whereClause), stopWord); stop >= 0 {
				whereClause = whereClause[:stop]
			}
		}
		for _, cond := range strings.Split(whereClause, " AND ") {
			cond = strings.TrimSpace(cond)
			if cond != "" && referencesOnly(cond, table) {
				conditions = append(conditions, cond)
			}
		}
	}

	stmt := fmt.Sprintf("SELECT %s.* FROM %s", table, table)
	if len(conditions) > 0 {
		stmt += " WHERE " + strings.Join(conditions, " AND ")
	}
	return fmt.Sprintf("%s LIMIT %d", stmt, maxRows)
}

// referencesOnly reports whether every dotted column in the condition
// belongs to table.
func referencesOnly(condition, table string) bool {
	refs := dottedColPattern.FindAllString(condition, -1)
	for _, ref := range refs {
		prefix, _, _ := strings.Cut(ref, ".")
		if !strings.EqualFold(prefix, table) {
			return false
		}
	}
	return true
}

// correctSyntax applies regex repairs keyed on the backend's error text.
// Currently one repair is known: missing-column errors degrade the select
// list to *.
func correctSyntax(sql, errMsg string) string {
	lowerErr := strings.ToLower(errMsg)
	for _, hint := range missingColumnHints {
		if strings.Contains(lowerErr, hint) {
			return replaceSelectList(sql)
		}
	}
	return sql
}

// replaceSelectList swaps whatever is between SELECT and FROM for *.
var selectListPattern = regexp.MustCompile(`(?is)^(\s*SELECT\s+).*?(\s+FROM\s)`)

func replaceSelectList(sql string) string {
	return selectListPattern.ReplaceAllString(sql, "${1}*${2}")
}
