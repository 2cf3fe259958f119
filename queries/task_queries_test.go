package queries

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/taskboard/config"
	"example.com/taskboard/domain"
	"example.com/taskboard/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.TaskReadModel{}))

	return db
}

func seedTasks(t *testing.T, db *gorm.DB) {
	t.Helper()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	desc := "quarterly budget review"
	done := base.Add(30 * time.Hour)

	rows := []models.TaskReadModel{
		{
			AggregateID: "task-1",
			Title:       "Write the report",
			Description: &desc,
			Status:      string(domain.StatusDone),
			CreatedBy:   "alice",
			CreatedAt:   base,
			CompletedAt: &done,
			Version:     2,
		},
		{
			AggregateID: "task-2",
			Title:       "Review pull requests",
			Status:      string(domain.StatusTodo),
			CreatedBy:   "alice",
			CreatedAt:   base.Add(24 * time.Hour),
			Version:     1,
		},
		{
			AggregateID: "task-3",
			Title:       "Plan the offsite",
			Status:      string(domain.StatusDeleted),
			CreatedBy:   "alice",
			CreatedAt:   base.Add(48 * time.Hour),
			Version:     3,
		},
		{
			AggregateID: "task-4",
			Title:       "Report server outage",
			Status:      string(domain.StatusTodo),
			CreatedBy:   "bob",
			CreatedAt:   base.Add(72 * time.Hour),
			Version:     1,
		},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}
}

func newQueries(t *testing.T) (*TaskQueries, *gorm.DB) {
	db := newTestDB(t)
	seedTasks(t, db)
	return NewTaskQueries(db, nil, config.Config{}), db
}

func TestTaskQueries_GetTask(t *testing.T) {
	q, _ := newQueries(t)

	row, err := q.GetTask(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, "Write the report", row.Title)
	assert.Equal(t, 2, row.Version)

	_, err = q.GetTask(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskQueries_ListFiltersByStatusAndCreator(t *testing.T) {
	q, _ := newQueries(t)
	ctx := context.Background()

	list, err := q.ListTasks(ctx, TaskFilter{Status: string(domain.StatusTodo)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)

	list, err = q.ListTasks(ctx, TaskFilter{Status: string(domain.StatusTodo), CreatedBy: "alice"})
	require.NoError(t, err)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, "task-2", list.Tasks[0].AggregateID)

	// "all" disables the status filter
	list, err = q.ListTasks(ctx, TaskFilter{Status: "all", CreatedBy: "alice"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, list.Total)
}

func TestTaskQueries_ListFiltersByDateRange(t *testing.T) {
	q, _ := newQueries(t)

	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 3, 23, 0, 0, 0, time.UTC)
	list, err := q.ListTasks(context.Background(), TaskFilter{FromDate: &from, ToDate: &to})
	require.NoError(t, err)
	require.Len(t, list.Tasks, 2)
	// newest first
	assert.Equal(t, "task-3", list.Tasks[0].AggregateID)
	assert.Equal(t, "task-2", list.Tasks[1].AggregateID)
}

func TestTaskQueries_ListFreeTextSearch(t *testing.T) {
	q, _ := newQueries(t)

	// matches title of task-4 and title of task-1 ("Report"/"report")
	list, err := q.ListTasks(context.Background(), TaskFilter{Search: "report"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)

	// matches description only
	list, err = q.ListTasks(context.Background(), TaskFilter{Search: "budget"})
	require.NoError(t, err)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, "task-1", list.Tasks[0].AggregateID)
}

func TestTaskQueries_ListPaginates(t *testing.T) {
	q, _ := newQueries(t)
	ctx := context.Background()

	first, err := q.ListTasks(ctx, TaskFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Tasks, 2)
	assert.EqualValues(t, 4, first.Total)
	assert.Equal(t, "task-4", first.Tasks[0].AggregateID)

	second, err := q.ListTasks(ctx, TaskFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second.Tasks, 2)
	assert.Equal(t, "task-2", second.Tasks[0].AggregateID)

	empty, err := q.ListTasks(ctx, TaskFilter{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, empty.Tasks)
}

func TestTaskQueries_CreatorStats(t *testing.T) {
	q, _ := newQueries(t)

	stats, err := q.CreatorStats(context.Background(), "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalTasks)
	assert.EqualValues(t, 1, stats.CompletedTasks)
	assert.EqualValues(t, 1, stats.PendingTasks)
	assert.EqualValues(t, 1, stats.DeletedTasks)
	require.NotNil(t, stats.AvgCompletionHours)
	assert.InDelta(t, 30.0, *stats.AvgCompletionHours, 0.01)
}

func TestTaskQueries_CreatorStatsNoCompletedTasks(t *testing.T) {
	q, _ := newQueries(t)

	stats, err := q.CreatorStats(context.Background(), "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalTasks)
	assert.EqualValues(t, 0, stats.CompletedTasks)
	assert.Nil(t, stats.AvgCompletionHours)
}

func TestTaskQueries_SearchFallsBackWithoutElasticsearch(t *testing.T) {
	q, _ := newQueries(t)

	list, err := q.SearchTasks(context.Background(), "offsite", 10)
	require.NoError(t, err)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, "task-3", list.Tasks[0].AggregateID)
}
