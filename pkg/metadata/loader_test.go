package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
data_source: sales
tables:
  - table_name: customers
    record_count: 1200
    description: Customer master data
    semantic_tags: [crm, master-data]
  - table_name: orders
    record_count: 50000
columns:
  - table_name: customers
    column_name: id
    data_type: INTEGER
  - table_name: customers
    column_name: country
    data_type: TEXT
  - table_name: orders
    column_name: customer_id
    data_type: INTEGER
relationships:
  - left_table: orders
    left_column: customer_id
    right_table: customers
    right_column: id
`

func TestLoadFileYAML(t *testing.T) {
	path := writeTemp(t, "meta.yaml", validYAML)

	meta, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sales", meta.DataSource)
	require.Len(t, meta.Tables, 2)
	assert.Equal(t, "customers", meta.Tables[0].TableName)
	assert.Equal(t, int64(1200), meta.Tables[0].RecordCount)
	assert.Equal(t, []string{"crm", "master-data"}, meta.Tables[0].SemanticTags)
	assert.Len(t, meta.Columns, 3)
	require.Len(t, meta.Relationships, 1)
	assert.Equal(t, "orders", meta.Relationships[0].LeftTable)
}

func TestLoadFileJSON(t *testing.T) {
	path := writeTemp(t, "meta.json", `{
		"data_source": "sales",
		"tables": [{"table_name": "customers", "record_count": 5}],
		"columns": [{"table_name": "customers", "column_name": "id"}]
	}`)

	meta, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sales", meta.DataSource)
	assert.True(t, meta.HasTable("customers"))
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{
			name:    "unsupported extension",
			file:    "meta.toml",
			content: "data_source = 'x'",
			wantErr: "unsupported metadata file extension",
		},
		{
			name:    "missing data source",
			file:    "meta.yaml",
			content: "tables:\n  - table_name: t\n",
			wantErr: "missing data_source",
		},
		{
			name:    "empty table name",
			file:    "meta.yaml",
			content: "data_source: x\ntables:\n  - record_count: 5\n",
			wantErr: "empty table_name",
		},
		{
			name:    "column references unknown table",
			file:    "meta.yaml",
			content: "data_source: x\ntables:\n  - table_name: t\ncolumns:\n  - table_name: other\n    column_name: c\n",
			wantErr: "references unknown table",
		},
		{
			name:    "malformed yaml",
			file:    "meta.yaml",
			content: "data_source: [unclosed",
			wantErr: "parse metadata YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.file, tt.content)
			_, err := LoadFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read metadata file")
}

func TestMetadataLookups(t *testing.T) {
	path := writeTemp(t, "meta.yaml", validYAML)
	meta, err := LoadFile(path)
	require.NoError(t, err)

	assert.True(t, meta.HasTable("CUSTOMERS"))
	assert.False(t, meta.HasTable("invoices"))
	assert.True(t, meta.HasColumn("customers", "Country"))
	assert.False(t, meta.HasColumn("customers", "amount"))
	assert.Equal(t, []string{"id", "country"}, meta.ColumnsOf("customers"))
	assert.Equal(t, []string{"customers", "orders"}, meta.TableNames())

	rels := meta.RelationshipsBetween([]string{"orders", "customers"})
	require.Len(t, rels, 1)
	assert.Empty(t, meta.RelationshipsBetween([]string{"orders"}))
}
