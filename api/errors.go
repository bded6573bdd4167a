package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Domenick1991/travelgo/internal/domain"
	"github.com/Domenick1991/travelgo/internal/validation"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeError maps domain errors onto status codes. The error is also attached
// to the gin context so the request logger sees it.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var (
		verr *domain.ValidationError
		cerr *domain.StateConflictError
		serr *domain.StorageError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorResponse{Message: verr.Error(), Fields: verr.Fields})
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, errorResponse{Message: cerr.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Message: "not found"})
	case errors.As(err, &serr):
		c.JSON(http.StatusBadRequest, errorResponse{Message: "database storage failed"})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Message: "internal error"})
	}
}

func writeBindError(c *gin.Context, err error) {
	writeError(c, validation.ToValidationError(err))
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, &domain.ValidationError{Message: "invalid id", Fields: map[string]string{"id": "must be a positive integer"}})
		return 0, false
	}
	return id, true
}
