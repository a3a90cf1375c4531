package httpserver

import (
	"errors"
	"net/http"

	"cafepos/internal/domain"

	"github.com/gin-gonic/gin"
)

// writeError maps the engine's error taxonomy to HTTP statuses. Conflicts
// expose the winning open order's id so the caller can retry the cart as an
// append.
func writeError(c *gin.Context, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Reason})
		return
	}

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		body := gin.H{"error": conflict.Reason}
		if conflict.OpenOrderID != "" {
			body["openOrderId"] = conflict.OpenOrderID
		}
		c.JSON(http.StatusConflict, body)
		return
	}

	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if errors.Is(err, domain.ErrTransientStorage) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporary storage failure, retry the request"})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
