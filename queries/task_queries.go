package queries

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"gorm.io/gorm"

	"example.com/taskboard/config"
	"example.com/taskboard/domain"
	"example.com/taskboard/models"
	"example.com/taskboard/projections"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TaskFilter narrows and paginates the task list query.
type TaskFilter struct {
	Status    string
	CreatedBy string
	FromDate  *time.Time
	ToDate    *time.Time
	Search    string
	Page      int
	Limit     int
}

// TaskList is one page of read-model rows plus paging info.
type TaskList struct {
	Tasks []models.TaskReadModel `json:"tasks"`
	Page  int                    `json:"page"`
	Limit int                    `json:"limit"`
	Total int64                  `json:"total"`
}

// CreatorStats aggregates task counts and completion latency for one creator.
type CreatorStats struct {
	TotalTasks         int64    `json:"total_tasks"`
	CompletedTasks     int64    `json:"completed_tasks"`
	PendingTasks       int64    `json:"pending_tasks"`
	DeletedTasks       int64    `json:"deleted_tasks"`
	AvgCompletionHours *float64 `json:"avg_completion_hours"`
}

// TaskQueries serves the query surface from the read model, never from the
// event log. Results are eventually consistent with the log by the bus's
// in-process delivery latency.
type TaskQueries struct {
	db  *gorm.DB
	es  *elasticsearch.Client
	cfg config.Config
}

// NewTaskQueries creates a new query handler. The Elasticsearch client is
// optional; without it SearchTasks falls back to the relational LIKE filter.
func NewTaskQueries(db *gorm.DB, es *elasticsearch.Client, cfg config.Config) *TaskQueries {
	return &TaskQueries{db: db, es: es, cfg: cfg}
}

// GetTask returns the read-model row for one task
func (q *TaskQueries) GetTask(ctx context.Context, id string) (*models.TaskReadModel, error) {
	var row models.TaskReadModel
	err := q.db.WithContext(ctx).Where("aggregate_id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return &row, nil
}

// ListTasks returns a filtered, paginated page of tasks ordered newest first
func (q *TaskQueries) ListTasks(ctx context.Context, filter TaskFilter) (*TaskList, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	base := q.filtered(ctx, filter)

	var total int64
	if err := base.Model(&models.TaskReadModel{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	var rows []models.TaskReadModel
	err := q.filtered(ctx, filter).
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return &TaskList{Tasks: rows, Page: page, Limit: limit, Total: total}, nil
}

func (q *TaskQueries) filtered(ctx context.Context, filter TaskFilter) *gorm.DB {
	query := q.db.WithContext(ctx).Model(&models.TaskReadModel{})

	if filter.Status != "" && filter.Status != "all" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CreatedBy != "" {
		query = query.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.FromDate != nil {
		query = query.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("created_at <= ?", *filter.ToDate)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?", pattern, pattern)
	}

	return query
}

// CreatorStats returns per-creator task counts and the mean completion
// latency in hours across done tasks
func (q *TaskQueries) CreatorStats(ctx context.Context, createdBy string) (*CreatorStats, error) {
	stats := &CreatorStats{}

	type countRow struct {
		Status string
		Count  int64
	}
	var counts []countRow
	err := q.db.WithContext(ctx).
		Model(&models.TaskReadModel{}).
		Select("status, COUNT(*) AS count").
		Where("created_by = ?", createdBy).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate task counts: %w", err)
	}

	for _, row := range counts {
		stats.TotalTasks += row.Count
		switch row.Status {
		case string(domain.StatusDone):
			stats.CompletedTasks = row.Count
		case string(domain.StatusTodo), string(domain.StatusInProgress):
			stats.PendingTasks += row.Count
		case string(domain.StatusDeleted):
			stats.DeletedTasks = row.Count
		}
	}

	// Completion latency is averaged in Go so the query stays portable
	// across the production and test databases.
	type latencyRow struct {
		CreatedAt   time.Time
		CompletedAt time.Time
	}
	var latencies []latencyRow
	err = q.db.WithContext(ctx).
		Model(&models.TaskReadModel{}).
		Select("created_at, completed_at").
		Where("created_by = ? AND status = ? AND completed_at IS NOT NULL", createdBy, string(domain.StatusDone)).
		Scan(&latencies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read completion latencies: %w", err)
	}

	if len(latencies) > 0 {
		var totalHours float64
		for _, row := range latencies {
			totalHours += row.CompletedAt.Sub(row.CreatedAt).Hours()
		}
		avg := totalHours / float64(len(latencies))
		stats.AvgCompletionHours = &avg
	}

	return stats, nil
}

// SearchTasks runs a full-text match over title and description. With
// Elasticsearch disabled it degrades to the relational LIKE filter.
func (q *TaskQueries) SearchTasks(ctx context.Context, search string, limit int) (*TaskList, error) {
	if q.es == nil {
		return q.ListTasks(ctx, TaskFilter{Search: search, Limit: limit})
	}

	if limit < 1 {
		limit = defaultPageSize
	}

	var body bytes.Buffer
	query := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  search,
				"fields": []string{"title^2", "description"},
			},
		},
	}
	if err := json.NewEncoder(&body).Encode(query); err != nil {
		return nil, fmt.Errorf("failed to encode search query: %w", err)
	}

	res, err := q.es.Search(
		q.es.Search.WithContext(ctx),
		q.es.Search.WithIndex(config.FormatIndex(q.cfg, projections.TasksIndex)),
		q.es.Search.WithBody(&body),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search request failed: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	// Hydrate the hits from the read model so the response shape matches
	// the list query.
	tasks := make([]models.TaskReadModel, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		row, err := q.GetTask(ctx, hit.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		tasks = append(tasks, *row)
	}

	return &TaskList{Tasks: tasks, Page: 1, Limit: limit, Total: parsed.Hits.Total.Value}, nil
}
