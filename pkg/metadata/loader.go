package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a metadata document from a YAML or JSON file, selected by
// extension.
func LoadFile(path string) (*DatasetMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}

	var meta DatasetMetadata
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("parse metadata JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("parse metadata YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported metadata file extension: %s", filepath.Ext(path))
	}

	if err := validate(&meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func validate(meta *DatasetMetadata) error {
	if meta.DataSource == "" {
		return fmt.Errorf("metadata missing data_source")
	}
	known := make(map[string]bool, len(meta.Tables))
	for _, t := range meta.Tables {
		if t.TableName == "" {
			return fmt.Errorf("metadata table with empty table_name")
		}
		known[strings.ToLower(t.TableName)] = true
	}
	for _, c := range meta.Columns {
		if !known[strings.ToLower(c.TableName)] {
			return fmt.Errorf("column %s.%s references unknown table", c.TableName, c.ColumnName)
		}
	}
	return nil
}
