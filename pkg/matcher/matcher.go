// Package matcher maps free-text questions to the most relevant known
// entities by comparing a query embedding against the vector index.
package matcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot-engine/pkg/llm"
	"github.com/datapilot-ai/datapilot-engine/pkg/metadata"
	"github.com/datapilot-ai/datapilot-engine/pkg/models"
	"github.com/datapilot-ai/datapilot-engine/pkg/vector"
)

// Options tune one match call. Zero values fall back to the matcher's
// configured defaults.
type Options struct {
	// SimilarityThreshold overrides the configured cutoff when > 0.
	SimilarityThreshold float64
	// Limit overrides the configured match cap when > 0.
	Limit int
	// EntityType restricts the search to one entity type when set.
	EntityType models.EntityType
}

// EntityMatcher performs similarity search plus context extraction.
type EntityMatcher struct {
	embedder   llm.EmbeddingClient
	index      vector.Index
	dataSource string
	threshold  float64
	limit      int
	logger     *zap.Logger
}

// NewEntityMatcher creates a matcher scoped to one data source.
func NewEntityMatcher(
	embedder llm.EmbeddingClient,
	index vector.Index,
	dataSource string,
	threshold float64,
	limit int,
	logger *zap.Logger,
) *EntityMatcher {
	if limit <= 0 {
		limit = 10
	}
	return &EntityMatcher{
		embedder:   embedder,
		index:      index,
		dataSource: dataSource,
		threshold:  threshold,
		limit:      limit,
		logger:     logger.Named("matcher"),
	}
}

// Match embeds the query, searches the index, and extracts the query context.
// An empty match slice is a valid result meaning "no relevant data"; it is
// not an error.
func (m *EntityMatcher) Match(ctx context.Context, query string, meta *metadata.DatasetMetadata, opts *Options) (*models.QueryContext, []models.MetadataMatch, error) {
	threshold := m.threshold
	limit := m.limit
	var entityType models.EntityType
	if opts != nil {
		if opts.SimilarityThreshold > 0 {
			threshold = opts.SimilarityThreshold
		}
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		entityType = opts.EntityType
	}

	qc := ExtractContext(query, meta)

	queryVector, err := m.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := m.index.Search(ctx, queryVector, vector.Filter{
		DataSource: m.dataSource,
		EntityType: string(entityType),
	}, limit, threshold)
	if err != nil {
		return nil, nil, fmt.Errorf("search entity index: %w", err)
	}

	matches := make([]models.MetadataMatch, 0, len(hits))
	for _, hit := range hits {
		matches = append(matches, models.MetadataMatch{
			EntityName:      hit.Payload.EntityName,
			EntityType:      models.EntityType(hit.Payload.EntityType),
			SimilarityScore: hit.Score,
			Content:         hit.Payload.Content,
			Metadata:        hit.Payload.Metadata,
			SemanticTags:    hit.Payload.SemanticTags,
		})
	}

	m.logger.Debug("entity match completed",
		zap.Int("matches", len(matches)),
		zap.Float64("threshold", threshold),
		zap.Float64("context_confidence", qc.ConfidenceScore))

	return qc, matches, nil
}

// IndexMetadata upserts embedding points for every table and column in the
// metadata document, making the data source searchable. Descriptions feed the
// embedding; names alone are used when no description exists.
func (m *EntityMatcher) IndexMetadata(ctx context.Context, meta *metadata.DatasetMetadata) error {
	var texts []string
	var points []vector.Point

	for _, t := range meta.Tables {
		content := t.Description
		if content == "" {
			content = fmt.Sprintf("Table %s with %d records", t.TableName, t.RecordCount)
		}
		texts = append(texts, content)
		points = append(points, vector.Point{
			ID: fmt.Sprintf("%s:table:%s", meta.DataSource, t.TableName),
			Payload: vector.Payload{
				DataSource:   meta.DataSource,
				EntityType:   string(models.EntityTypeTable),
				EntityName:   t.TableName,
				Content:      content,
				SemanticTags: t.SemanticTags,
				Metadata:     map[string]any{"record_count": t.RecordCount},
			},
		})
	}

	for _, c := range meta.Columns {
		content := c.Description
		if content == "" {
			content = fmt.Sprintf("Column %s of table %s (%s)", c.ColumnName, c.TableName, c.DataType)
		}
		texts = append(texts, content)
		points = append(points, vector.Point{
			ID: fmt.Sprintf("%s:column:%s.%s", meta.DataSource, c.TableName, c.ColumnName),
			Payload: vector.Payload{
				DataSource: meta.DataSource,
				EntityType: string(models.EntityTypeColumn),
				EntityName: fmt.Sprintf("%s.%s", c.TableName, c.ColumnName),
				Content:    content,
				Metadata:   map[string]any{"table": c.TableName, "data_type": c.DataType},
			},
		})
	}

	if len(points) == 0 {
		return nil
	}

	vectors, err := m.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed metadata entities: %w", err)
	}
	for i := range points {
		points[i].Vector = vectors[i]
	}

	if err := m.index.Upsert(ctx, points); err != nil {
		return fmt.Errorf("upsert entity points: %w", err)
	}

	m.logger.Info("indexed metadata entities",
		zap.String("data_source", meta.DataSource),
		zap.Int("points", len(points)))
	return nil
}
