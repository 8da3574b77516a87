package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/internal/service"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
	"github.com/dat-nglt/cusc-schedule/pkg/response"
)

type exportService interface {
	Timetable(ctx context.Context, req service.TimetableExportRequest) (*service.Document, error)
}

// ExportHandler streams timetable exports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Timetable godoc
// @Summary Export timetable
// @Description Export a class or lecturer timetable as CSV or PDF. Lecturers default to their own.
// @Tags Export
// @Produce text/csv
// @Produce application/pdf
// @Param class_id query string false "Class ID"
// @Param lecturer_id query string false "Lecturer ID"
// @Param from query string true "From date (YYYY-MM-DD)"
// @Param to query string true "To date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.ErrorBody
// @Security BearerAuth
// @Router /export/timetable [get]
func (h *ExportHandler) Timetable(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}

	var req service.TimetableExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	if claims.Role == models.RoleLecturer && req.ClassID == "" && req.LecturerID == "" {
		req.LecturerID = claims.AccountID
	}

	doc, err := h.service.Timetable(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, doc.Filename, doc.ContentType, doc.Data)
}
