package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/pkg/response"
)

type notificationService interface {
	Send(ctx context.Context, req models.SendNotificationRequest, creatorID string) (*models.SendNotificationResult, error)
	Get(ctx context.Context, id string) (*models.Notification, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error)
	Inbox(ctx context.Context, accountID string, filter models.NotificationFilter) ([]models.InboxItem, *models.Pagination, error)
	UnreadCount(ctx context.Context, accountID string) (int, error)
	MarkRead(ctx context.Context, accountID, notificationID string) (bool, error)
	MarkAllRead(ctx context.Context, accountID string) (int64, error)
	Delete(ctx context.Context, id string) error
}

// NotificationHandler exposes notification endpoints.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(svc notificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

func notificationFilter(c *gin.Context) models.NotificationFilter {
	var filter models.NotificationFilter
	if t := c.Query("type"); t != "" {
		nt := models.NotificationType(t)
		filter.Type = &nt
	}
	if r := c.Query("recipients"); r != "" {
		nr := models.NotificationRecipients(r)
		filter.Recipients = &nr
	}
	filter.UnreadOnly = c.Query("unread") == "true"
	filter.Page, filter.PageSize = pageParams(c)
	return filter
}

// Send godoc
// @Summary Send notification
// @Description Create a notification and fan it out to every matching account
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body models.SendNotificationRequest true "Notification"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Security BearerAuth
// @Router /notifications [post]
func (h *NotificationHandler) Send(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req models.SendNotificationRequest
	if !bindJSON(c, &req, "invalid notification payload") {
		return
	}
	res, err := h.service.Send(c.Request.Context(), req, claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// List godoc
// @Summary List all notifications
// @Tags Notifications
// @Produce json
// @Param type query string false "Notification type"
// @Param recipients query string false "Recipient group"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	items, pagination, err := h.service.List(c.Request.Context(), notificationFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get notification
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /notifications/{id} [get]
func (h *NotificationHandler) Get(c *gin.Context) {
	n, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, n, nil)
}

// Delete godoc
// @Summary Delete notification
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Security BearerAuth
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Inbox godoc
// @Summary List my notifications
// @Description Expired notifications are hidden
// @Tags Notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Param type query string false "Notification type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/notifications [get]
func (h *NotificationHandler) Inbox(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	items, pagination, err := h.service.Inbox(c.Request.Context(), claims.AccountID, notificationFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// UnreadCount godoc
// @Summary Count my unread notifications
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	n, err := h.service.UnreadCount(c.Request.Context(), claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unread": n}, nil)
}

// MarkRead godoc
// @Summary Mark notification read
// @Description Idempotent; the first read timestamp is kept
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Security BearerAuth
// @Router /me/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	changed, err := h.service.MarkRead(c.Request.Context(), claims.AccountID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": changed}, nil)
}

// MarkAllRead godoc
// @Summary Mark all my notifications read
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	n, err := h.service.MarkAllRead(c.Request.Context(), claims.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": n}, nil)
}
