package models

// QueryContext captures the interpretation of a user's free-text question.
// Created once per request by the entity matcher and immutable afterward.
type QueryContext struct {
	EntitiesMentioned   []string `json:"entities_mentioned"`
	AttributesMentioned []string `json:"attributes_mentioned"`
	Operations          []string `json:"operations"`
	Filters             []string `json:"filters"`
	Aggregations        []string `json:"aggregations"`
	TemporalReferences  []string `json:"temporal_references"`
	BusinessIntent      string   `json:"business_intent"`
	ConfidenceScore     float64  `json:"confidence_score"`
}

// HasTemporalReference reports whether the query mentioned dates or time ranges.
func (qc *QueryContext) HasTemporalReference() bool {
	return len(qc.TemporalReferences) > 0
}

// EntityType classifies what kind of metadata entity a match refers to.
type EntityType string

const (
	EntityTypeTable        EntityType = "table"
	EntityTypeColumn       EntityType = "column"
	EntityTypeSemanticTags EntityType = "semantic_tags"
	EntityTypeBusinessRule EntityType = "business_rule"
	EntityTypeDataPattern  EntityType = "data_pattern"
)

// MetadataMatch is one candidate entity hit from the similarity search.
type MetadataMatch struct {
	EntityName      string         `json:"entity_name"`
	EntityType      EntityType     `json:"entity_type"`
	SimilarityScore float64        `json:"similarity_score"`
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	SemanticTags    []string       `json:"semantic_tags,omitempty"`
}

// JoinSpec describes one join edge in a query plan.
type JoinSpec struct {
	Type        string `json:"type"` // "INNER", "LEFT", ...
	LeftTable   string `json:"left_table"`
	LeftColumn  string `json:"left_column"`
	RightTable  string `json:"right_table"`
	RightColumn string `json:"right_column"`
}

// QueryPlan is the dialect-independent intermediate representation of a query.
// PrimaryTables may be empty; the generator degrades to a probe query in that
// case rather than failing.
type QueryPlan struct {
	PrimaryTables    []string     `json:"primary_tables"`
	RequiredJoins    []JoinSpec   `json:"required_joins"`
	SelectColumns    []string     `json:"select_columns"`
	WhereConditions  []string     `json:"where_conditions"`
	OrderBy          []string     `json:"order_by"`
	Aggregations     []string     `json:"aggregations"`
	RowLimit         int          `json:"row_limit"`
	ConfidenceScore  float64      `json:"confidence_score"`
	AlternativePlans []*QueryPlan `json:"alternative_plans,omitempty"`
}

// AnchorTable returns the first primary table, or "" when the plan is empty.
func (p *QueryPlan) AnchorTable() string {
	if len(p.PrimaryTables) == 0 {
		return ""
	}
	return p.PrimaryTables[0]
}

// ComplexityLevel classifies generated SQL by structural complexity.
type ComplexityLevel string

const (
	ComplexitySimple   ComplexityLevel = "simple"
	ComplexityModerate ComplexityLevel = "moderate"
	ComplexityComplex  ComplexityLevel = "complex"
)

// SQLGenerationResult is one generation attempt's output.
type SQLGenerationResult struct {
	SQL             string          `json:"sql"`
	Explanation     string          `json:"explanation"`
	ConfidenceScore float64         `json:"confidence_score"`
	ComplexityLevel ComplexityLevel `json:"complexity_level"`
	EstimatedRows   int             `json:"estimated_rows,omitempty"`
}

// ExecutionResult holds the outcome of one SQL execution.
//
// Invariants: RowCount == len(Data); Success == false implies Data is empty
// and ErrorMessage is set; Data never exceeds the configured row cap, and a
// truncation warning is appended whenever the cap was hit.
type ExecutionResult struct {
	Success         bool             `json:"success"`
	Data            []map[string]any `json:"data"`
	ColumnNames     []string         `json:"column_names"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMs float64          `json:"execution_time_ms"`
	SQLExecuted     string           `json:"sql_executed"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	Warnings        []string         `json:"warnings,omitempty"`
}

// FallbackAttempt is the audit record of one execution try.
// AttemptNumber 0 is the primary attempt; fallback strategies follow.
type FallbackAttempt struct {
	AttemptNumber   int     `json:"attempt_number"`
	Strategy        string  `json:"strategy"`
	SQLAttempted    string  `json:"sql_attempted"`
	Success         bool    `json:"success"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	ExecutionTimeMs float64 `json:"execution_time_ms"`
}

// QueryResult is the top-level orchestration output returned to callers.
// When ExecutionResult is non-nil, Success mirrors ExecutionResult.Success.
type QueryResult struct {
	Success          bool                 `json:"success"`
	OriginalQuery    string               `json:"original_query"`
	QueryContext     *QueryContext        `json:"query_context,omitempty"`
	MetadataMatches  []MetadataMatch      `json:"metadata_matches"`
	QueryPlan        *QueryPlan           `json:"query_plan,omitempty"`
	SQLResult        *SQLGenerationResult `json:"sql_result,omitempty"`
	ExecutionResult  *ExecutionResult     `json:"execution_result,omitempty"`
	FallbackAttempts []FallbackAttempt    `json:"fallback_attempts,omitempty"`
	ProcessingTimeMs float64              `json:"processing_time_ms"`
	ErrorMessage     string               `json:"error_message,omitempty"`
	Warnings         []string             `json:"warnings,omitempty"`
}
