package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dat-nglt/cusc-schedule/internal/middleware"
	"github.com/dat-nglt/cusc-schedule/internal/models"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
	"github.com/dat-nglt/cusc-schedule/pkg/response"
)

const dateLayout = "2006-01-02"

// requireClaims returns the caller's claims or writes a 401 and returns nil.
func requireClaims(c *gin.Context) *models.JWTClaims {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
	}
	return claims
}

// bindJSON decodes the body into dst, writing a 400 on failure.
func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// pageParams reads page and limit, keeping the defaults on garbage input.
func pageParams(c *gin.Context) (int, int) {
	page, size := 1, 20
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		size = v
	}
	return page, size
}

func academicFilter(c *gin.Context, parentParam string) models.AcademicFilter {
	var filter models.AcademicFilter
	if parentParam != "" {
		filter.ParentID = c.Query(parentParam)
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}

// dateQuery parses an optional YYYY-MM-DD query parameter.
func dateQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "invalid date"), map[string]string{key: "must be YYYY-MM-DD"})
	}
	return &t, nil
}
