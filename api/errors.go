package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/taskboard/domain"
	"example.com/taskboard/utils"
)

// writeError maps command and query failures onto HTTP statuses. Conflicts
// are distinct from rule violations so clients know a retry can succeed.
func writeError(c *gin.Context, err error) {
	switch {
	case utils.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.Is(err, domain.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "task already exists"})
	case domain.IsConcurrencyConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent modification, reload and retry"})
	case errors.Is(err, domain.ErrAlreadyCompleted),
		errors.Is(err, domain.ErrNotCompleted),
		errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
