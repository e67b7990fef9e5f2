// Package metadata holds the dataset metadata consumed by the query pipeline.
// Metadata is produced by an upstream extraction pipeline; this package only
// models and loads it.
package metadata

import (
	"strings"
)

// TableMetadata describes one known table.
type TableMetadata struct {
	TableName    string   `yaml:"table_name" json:"table_name"`
	RecordCount  int64    `yaml:"record_count" json:"record_count"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	SemanticTags []string `yaml:"semantic_tags,omitempty" json:"semantic_tags,omitempty"`
}

// ColumnMetadata describes one known column.
type ColumnMetadata struct {
	TableName   string `yaml:"table_name" json:"table_name"`
	ColumnName  string `yaml:"column_name" json:"column_name"`
	DataType    string `yaml:"data_type,omitempty" json:"data_type,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Relationship is a join hint between two tables discovered upstream.
type Relationship struct {
	LeftTable   string `yaml:"left_table" json:"left_table"`
	LeftColumn  string `yaml:"left_column" json:"left_column"`
	RightTable  string `yaml:"right_table" json:"right_table"`
	RightColumn string `yaml:"right_column" json:"right_column"`
	JoinType    string `yaml:"join_type,omitempty" json:"join_type,omitempty"`
}

// DatasetMetadata is the full metadata document for one data source.
type DatasetMetadata struct {
	DataSource    string           `yaml:"data_source" json:"data_source"`
	Tables        []TableMetadata  `yaml:"tables" json:"tables"`
	Columns       []ColumnMetadata `yaml:"columns" json:"columns"`
	Relationships []Relationship   `yaml:"relationships,omitempty" json:"relationships,omitempty"`
}

// HasTable reports whether name matches a known table (case-insensitive).
func (m *DatasetMetadata) HasTable(name string) bool {
	for _, t := range m.Tables {
		if strings.EqualFold(t.TableName, name) {
			return true
		}
	}
	return false
}

// HasColumn reports whether table.column is known (case-insensitive).
func (m *DatasetMetadata) HasColumn(table, column string) bool {
	for _, c := range m.Columns {
		if strings.EqualFold(c.TableName, table) && strings.EqualFold(c.ColumnName, column) {
			return true
		}
	}
	return false
}

// ColumnsOf returns the column names of a table in document order.
func (m *DatasetMetadata) ColumnsOf(table string) []string {
	var cols []string
	for _, c := range m.Columns {
		if strings.EqualFold(c.TableName, table) {
			cols = append(cols, c.ColumnName)
		}
	}
	return cols
}

// TableNames returns all known table names in document order.
func (m *DatasetMetadata) TableNames() []string {
	names := make([]string, 0, len(m.Tables))
	for _, t := range m.Tables {
		names = append(names, t.TableName)
	}
	return names
}

// RelationshipsBetween returns join hints connecting any pair of the given
// tables, in document order.
func (m *DatasetMetadata) RelationshipsBetween(tables []string) []Relationship {
	inSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		inSet[strings.ToLower(t)] = true
	}

	var rels []Relationship
	for _, r := range m.Relationships {
		if inSet[strings.ToLower(r.LeftTable)] && inSet[strings.ToLower(r.RightTable)] {
			rels = append(rels, r)
		}
	}
	return rels
}
