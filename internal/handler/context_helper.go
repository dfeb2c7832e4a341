package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-core/internal/middleware"
	"github.com/noah-isme/attendance-core/internal/models"
	appErrors "github.com/noah-isme/attendance-core/pkg/errors"
	"github.com/noah-isme/attendance-core/pkg/response"
)

// caller returns the authenticated identity or writes 401 and reports false.
func caller(c *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Identity{}, false
	}
	return identity, true
}

// pathID parses a positive integer path parameter or writes 400 and reports false.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}

func queryID(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, name+" must be a positive integer")
	}
	return id, nil
}

// sortOrder reads ?order= falling back to the per-view default.
func sortOrder(c *gin.Context, fallback models.SortOrder) models.SortOrder {
	return models.SortOrder(c.DefaultQuery("order", string(fallback)))
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
