package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/datapilot-ai/datapilot-engine/pkg/apperrors"
)

// SQLiteStore persists vectors in a single SQLite file. Similarity is
// computed in-process; the database only handles storage and filtering.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS points (
	id          TEXT PRIMARY KEY,
	data_source TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	payload     TEXT NOT NULL,
	vector      BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_points_scope ON points (data_source, entity_type);
`

// OpenSQLiteStore opens (or creates) a vector store at path.
// Use ":memory:" for an in-process database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create vector store schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Upsert implements Index.
func (s *SQLiteStore) Upsert(ctx context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.ErrIndexClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (id, data_source, entity_type, payload, vector)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data_source = excluded.data_source,
			entity_type = excluded.entity_type,
			payload     = excluded.payload,
			vector      = excluded.vector`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		payloadJSON, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Payload.DataSource, p.Payload.EntityType, string(payloadJSON), encodeVector(p.Vector)); err != nil {
			return fmt.Errorf("upsert point %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Search implements Index. Candidates are filtered in SQL, scored in Go.
func (s *SQLiteStore) Search(ctx context.Context, vector []float32, filter Filter, limit int, threshold float64) ([]ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, apperrors.ErrIndexClosed
	}

	rows, err := s.queryPoints(ctx, filter, "")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []ScoredPoint
	for rows.Next() {
		point, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		score := CosineSimilarity(vector, point.Vector)
		if score >= threshold {
			hits = append(hits, ScoredPoint{ID: point.ID, Score: score, Payload: point.Payload})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate points: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Scroll implements Index.
func (s *SQLiteStore) Scroll(ctx context.Context, filter Filter, cursor string, limit int) ([]Point, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, "", apperrors.ErrIndexClosed
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.queryPoints(ctx, filter, cursor)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var page []Point
	for rows.Next() {
		point, err := scanPoint(rows)
		if err != nil {
			return nil, "", err
		}
		page = append(page, point)
		if len(page) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate points: %w", err)
	}

	next := ""
	if len(page) == limit {
		next = page[len(page)-1].ID
	}
	return page, next, nil
}

// Close implements Index.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) queryPoints(ctx context.Context, filter Filter, cursor string) (*sql.Rows, error) {
	query := "SELECT id, payload, vector FROM points WHERE 1=1"
	var args []any
	if filter.DataSource != "" {
		query += " AND data_source = ?"
		args = append(args, filter.DataSource)
	}
	if filter.EntityType != "" {
		query += " AND entity_type = ?"
		args = append(args, filter.EntityType)
	}
	if cursor != "" {
		query += " AND id > ?"
		args = append(args, cursor)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	return rows, nil
}

func scanPoint(rows *sql.Rows) (Point, error) {
	var (
		point       Point
		payloadJSON string
		vectorBlob  []byte
	)
	if err := rows.Scan(&point.ID, &payloadJSON, &vectorBlob); err != nil {
		return Point{}, fmt.Errorf("scan point: %w", err)
	}
	if err := json.Unmarshal([]byte(payloadJSON), &point.Payload); err != nil {
		return Point{}, fmt.Errorf("unmarshal payload for %s: %w", point.ID, err)
	}
	point.Vector = decodeVector(vectorBlob)
	return point, nil
}

// encodeVector packs float32 values little-endian, 4 bytes each.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

var _ Index = (*SQLiteStore)(nil)
