package projections

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/taskboard/config"
	"example.com/taskboard/domain"
	"example.com/taskboard/models"
)

// TasksIndex is the Elasticsearch index holding the searchable task documents
const TasksIndex = "tasks"

// NewElasticsearchClient creates a new Elasticsearch client
func NewElasticsearchClient(cfg config.Config) (*elasticsearch.Client, error) {
	elasticCfg := elasticsearch.Config{
		Addresses: []string{cfg.ElasticSearchURL},
		Username:  cfg.ElasticSearchUsername,
		Password:  cfg.ElasticSearchPassword,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
		},
	}

	client, err := elasticsearch.NewClient(elasticCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating Elasticsearch client: %w", err)
	}

	// Check the connection
	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("error connecting to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("Elasticsearch returned error: %s", res.String())
	}

	log.Info().Msg("Successfully connected to Elasticsearch")
	return client, nil
}

// EnsureIndices ensures that the search indices exist
func EnsureIndices(client *elasticsearch.Client, cfg config.Config) error {
	index := config.FormatIndex(cfg, TasksIndex)

	res, err := client.Indices.Exists([]string{index})
	if err != nil {
		return fmt.Errorf("error checking index %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	createRes, err := client.Indices.Create(index)
	if err != nil {
		return fmt.Errorf("error creating index %s: %w", index, err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("error creating index %s: %s", index, createRes.String())
	}

	log.Info().Str("index", index).Msg("Created search index")
	return nil
}

// taskDocument is the search-index shape of a task
type taskDocument struct {
	AggregateID string     `json:"aggregate_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      string     `json:"status"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Version     int        `json:"version"`
}

// SearchProjector keeps the full-text task index in sync with the read
// model. It is subscribed after the TaskProjector, so by the time it runs the
// read-model row for the event is already current; the whole row is indexed
// with external versioning, which makes reindexing idempotent and rejects
// stale deliveries. Deleted tasks stay in the index with status "deleted".
type SearchProjector struct {
	db     *gorm.DB
	client *elasticsearch.Client
	cfg    config.Config
}

// NewSearchProjector creates a new search projector
func NewSearchProjector(db *gorm.DB, client *elasticsearch.Client, cfg config.Config) *SearchProjector {
	return &SearchProjector{db: db, client: client, cfg: cfg}
}

// HandleEvent indexes the task touched by the event
func (p *SearchProjector) HandleEvent(ctx context.Context, event domain.Event) error {
	var row models.TaskReadModel
	err := p.db.WithContext(ctx).
		Where("aggregate_id = ?", event.AggregateID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().
				Str("aggregateID", event.AggregateID).
				Str("eventKind", event.Kind).
				Msg("No read-model row to index yet")
			return nil
		}
		return fmt.Errorf("failed to load read-model row for indexing: %w", err)
	}

	return p.indexRow(ctx, row)
}

// ReindexAll pushes every read-model row into the search index. External
// versioning makes this safe to run against a live index.
func (p *SearchProjector) ReindexAll(ctx context.Context) error {
	var rows []models.TaskReadModel
	if err := p.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load read model for reindexing: %w", err)
	}

	for _, row := range rows {
		if err := p.indexRow(ctx, row); err != nil {
			return err
		}
	}

	log.Info().Int("tasks", len(rows)).Msg("Search index reindexed from read model")
	return nil
}

func (p *SearchProjector) indexRow(ctx context.Context, row models.TaskReadModel) error {
	doc := taskDocument{
		AggregateID: row.AggregateID,
		Title:       row.Title,
		Description: row.Description,
		Status:      row.Status,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		Version:     row.Version,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal task document: %w", err)
	}

	index := config.FormatIndex(p.cfg, TasksIndex)
	res, err := p.client.Index(
		index,
		bytes.NewReader(body),
		p.client.Index.WithContext(ctx),
		p.client.Index.WithDocumentID(row.AggregateID),
		p.client.Index.WithVersion(row.Version),
		p.client.Index.WithVersionType("external"),
	)
	if err != nil {
		return fmt.Errorf("failed to index task %s: %w", row.AggregateID, err)
	}
	defer res.Body.Close()

	// 409 means the index already holds this version or newer
	if res.StatusCode == http.StatusConflict {
		log.Debug().
			Str("aggregateID", row.AggregateID).
			Int("version", row.Version).
			Msg("Search index already up to date")
		return nil
	}

	if res.IsError() {
		return fmt.Errorf("failed to index task %s: %s", row.AggregateID, res.String())
	}

	return nil
}
