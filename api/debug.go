package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"example.com/taskboard/domain"
	"example.com/taskboard/models"
)

const defaultEventPageSize = 50

// eventResponse exposes a stored event with its payload as raw JSON
type eventResponse struct {
	EventID       string          `json:"event_id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateKind string          `json:"aggregate_kind"`
	Kind          string          `json:"kind"`
	Version       int             `json:"version"`
	RecordedAt    string          `json:"recorded_at"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      json.RawMessage `json:"metadata"`
}

func toEventResponse(row models.Event) eventResponse {
	return eventResponse{
		EventID:       row.EventID,
		AggregateID:   row.AggregateID,
		AggregateKind: row.AggregateKind,
		Kind:          row.EventKind,
		Version:       row.Version,
		RecordedAt:    row.RecordedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		Payload:       json.RawMessage(row.Payload),
		Metadata:      json.RawMessage(row.Metadata),
	}
}

// listEvents returns the most recently recorded events across all aggregates
func (s *Server) listEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit < 1 || limit > 500 {
		limit = defaultEventPageSize
	}

	ctx := c.Request.Context()

	var eventCount, taskCount int64
	if err := s.db.WithContext(ctx).Model(&models.Event{}).Count(&eventCount).Error; err != nil {
		writeError(c, err)
		return
	}
	if err := s.db.WithContext(ctx).Model(&models.TaskReadModel{}).Count(&taskCount).Error; err != nil {
		writeError(c, err)
		return
	}

	var rows []models.Event
	err := s.db.WithContext(ctx).
		Order("recorded_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		writeError(c, err)
		return
	}

	events := make([]eventResponse, 0, len(rows))
	for _, row := range rows {
		events = append(events, toEventResponse(row))
	}

	c.JSON(http.StatusOK, gin.H{
		"event_count": eventCount,
		"task_count":  taskCount,
		"events":      events,
	})
}

// getAggregateEvents returns one aggregate's full history in version order
func (s *Server) getAggregateEvents(c *gin.Context) {
	var rows []models.Event
	err := s.db.WithContext(c.Request.Context()).
		Where("aggregate_id = ?", c.Param("id")).
		Order("version ASC").
		Find(&rows).Error
	if err != nil {
		writeError(c, err)
		return
	}
	if len(rows) == 0 {
		writeError(c, domain.ErrNotFound)
		return
	}

	events := make([]eventResponse, 0, len(rows))
	for _, row := range rows {
		events = append(events, toEventResponse(row))
	}

	c.JSON(http.StatusOK, gin.H{"aggregate_id": c.Param("id"), "events": events})
}

// refreshReadModel re-projects one task's read model row from its history
func (s *Server) refreshReadModel(c *gin.Context) {
	id := c.Param("id")
	if err := s.rebuilder.RebuildAggregate(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	row, err := s.taskQueries.GetTask(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, row)
}

// getAggregateState replays the event log and returns the aggregate's state
// next to the read-model row. Useful for spotting projection drift.
func (s *Server) getAggregateState(c *gin.Context) {
	id := c.Param("id")

	task, err := s.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if task == nil {
		writeError(c, domain.ErrNotFound)
		return
	}

	var readModel *models.TaskReadModel
	if row, err := s.taskQueries.GetTask(c.Request.Context(), id); err == nil {
		readModel = row
	}

	c.JSON(http.StatusOK, gin.H{
		"aggregate":  task.State(),
		"read_model": readModel,
	})
}
