package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"example.com/taskboard/handlers"
	"example.com/taskboard/queries"
)

// completeTaskRequest carries the acting user for status transitions
type completeTaskRequest struct {
	ActorID string `json:"actor_id"`
}

// deleteTaskRequest carries the acting user and an optional reason
type deleteTaskRequest struct {
	ActorID string  `json:"actor_id"`
	Reason  *string `json:"reason"`
}

// createTask creates a new task
func (s *Server) createTask(c *gin.Context) {
	var cmd handlers.CreateTaskCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := s.taskHandler.HandleCreateTask(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, state)
}

// updateTask changes a task's title and/or description
func (s *Server) updateTask(c *gin.Context) {
	var cmd handlers.UpdateTaskCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd.TaskID = c.Param("id")

	state, err := s.taskHandler.HandleUpdateTask(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// completeTask marks a task done
func (s *Server) completeTask(c *gin.Context) {
	var req completeTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := handlers.CompleteTaskCommand{TaskID: c.Param("id"), ActorID: req.ActorID}
	state, err := s.taskHandler.HandleCompleteTask(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// reopenTask returns a completed task to todo
func (s *Server) reopenTask(c *gin.Context) {
	var req completeTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := handlers.ReopenTaskCommand{TaskID: c.Param("id"), ActorID: req.ActorID}
	state, err := s.taskHandler.HandleReopenTask(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// deleteTask terminally deletes a task
func (s *Server) deleteTask(c *gin.Context) {
	var req deleteTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := handlers.DeleteTaskCommand{TaskID: c.Param("id"), ActorID: req.ActorID, Reason: req.Reason}
	state, err := s.taskHandler.HandleDeleteTask(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// getTask returns the read-model row for one task
func (s *Server) getTask(c *gin.Context) {
	row, err := s.taskQueries.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, row)
}

// listTasks returns a filtered, paginated task list from the read model
func (s *Server) listTasks(c *gin.Context) {
	filter := queries.TaskFilter{
		Status:    c.Query("status"),
		CreatedBy: c.Query("created_by"),
		Search:    c.Query("search"),
	}
	filter.Page, _ = strconv.Atoi(c.Query("page"))
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))

	if raw := c.Query("from_date"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from_date must be RFC3339"})
			return
		}
		filter.FromDate = &from
	}
	if raw := c.Query("to_date"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to_date must be RFC3339"})
			return
		}
		filter.ToDate = &to
	}

	list, err := s.taskQueries.ListTasks(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// creatorStats returns per-creator counts and completion latency
func (s *Server) creatorStats(c *gin.Context) {
	createdBy := c.Query("created_by")
	if createdBy == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "created_by is required"})
		return
	}

	stats, err := s.taskQueries.CreatorStats(c.Request.Context(), createdBy)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// searchTasks runs the full-text search surface
func (s *Server) searchTasks(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	list, err := s.taskQueries.SearchTasks(c.Request.Context(), query, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}
