package sqlite

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// csvBatchSize bounds how many rows go into one multi-row INSERT.
const csvBatchSize = 500

var identifierPattern = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// LoadCSV implements datasource.DatasetLoader. The CSV header row becomes the
// column list; every column is typed TEXT and SQLite's type affinity handles
// numeric comparisons. An existing table of the same name is replaced.
func (c *Connector) LoadCSV(ctx context.Context, tableName, filePath string) (int64, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("open dataset file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read CSV header: %w", err)
	}
	if len(header) == 0 {
		return 0, fmt.Errorf("CSV file %s has an empty header", filePath)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = normalizeIdentifier(name)
	}

	db, err := c.conn(ctx)
	if err != nil {
		return 0, err
	}

	table := normalizeIdentifier(tableName)
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, table)); err != nil {
		return 0, fmt.Errorf("drop existing table: %w", err)
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = fmt.Sprintf(`"%s" TEXT`, col)
	}
	createSQL := fmt.Sprintf(`CREATE TABLE "%s" (%s)`, table, strings.Join(quoted, ", "))
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("create table from CSV header: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin CSV load: %w", err)
	}
	defer tx.Rollback()

	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	insertPrefix := fmt.Sprintf(`INSERT INTO "%s" VALUES `, table)

	var (
		total int64
		batch []any
		count int
	)
	flush := func() error {
		if count == 0 {
			return nil
		}
		stmt := insertPrefix + strings.TrimSuffix(strings.Repeat(placeholders+",", count), ",")
		if _, err := tx.ExecContext(ctx, stmt, batch...); err != nil {
			return fmt.Errorf("insert CSV rows: %w", err)
		}
		total += int64(count)
		batch = batch[:0]
		count = 0
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read CSV row: %w", err)
		}

		for i := range columns {
			if i < len(record) {
				batch = append(batch, record[i])
			} else {
				batch = append(batch, nil)
			}
		}
		count++

		if count == csvBatchSize {
			if err := flush(); err != nil {
				return 0, err
			}
		}
	}
	if err := flush(); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit CSV load: %w", err)
	}

	c.logger.Info("loaded CSV dataset",
		zap.String("table", table),
		zap.Int64("rows", total),
		zap.Int("columns", len(columns)))

	return total, nil
}

// normalizeIdentifier turns an arbitrary header/table name into a safe SQL
// identifier: non-alphanumerics collapse to underscores.
func normalizeIdentifier(name string) string {
	normalized := identifierPattern.ReplaceAllString(strings.TrimSpace(name), "_")
	normalized = strings.Trim(normalized, "_")
	if normalized == "" {
		return "col"
	}
	return normalized
}
