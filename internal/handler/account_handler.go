package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
	"github.com/dat-nglt/cusc-schedule/pkg/response"
)

type accountService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.Account, error)
	Get(ctx context.Context, id string) (*models.Account, error)
	List(ctx context.Context, filter models.AccountFilter) ([]models.Account, *models.Pagination, error)
	UpdateStatus(ctx context.Context, id string, req models.UpdateAccountStatusRequest) (*models.Account, error)
	UpdateProfile(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.Account, error)
	DeleteProfile(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type sessionRevoker interface {
	RevokeAccount(ctx context.Context, accountID string) (int64, error)
}

// AccountHandler exposes account administration endpoints.
type AccountHandler struct {
	service  accountService
	sessions sessionRevoker
}

// NewAccountHandler constructs an account handler.
func NewAccountHandler(svc accountService, sessions sessionRevoker) *AccountHandler {
	return &AccountHandler{service: svc, sessions: sessions}
}

// Register godoc
// @Summary Register account
// @Description Create an account together with its role profile
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Account payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /accounts [post]
func (h *AccountHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req, "invalid account payload") {
		return
	}
	account, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, account)
}

// List godoc
// @Summary List accounts
// @Tags Accounts
// @Produce json
// @Param role query string false "Filter by role"
// @Param status query string false "Filter by status"
// @Param search query string false "Search by name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /accounts [get]
func (h *AccountHandler) List(c *gin.Context) {
	var filter models.AccountFilter
	if role := c.Query("role"); role != "" {
		r := models.Role(role)
		if !r.Valid() {
			response.Error(c, appErrors.WithFields(appErrors.ErrValidation, map[string]string{"role": "must be one of student lecturer admin training_officer"}))
			return
		}
		filter.Role = &r
	}
	if status := c.Query("status"); status != "" {
		s := models.AccountStatus(status)
		filter.Status = &s
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	accounts, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, accounts, pagination)
}

// Get godoc
// @Summary Get account
// @Tags Accounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Security BearerAuth
// @Router /accounts/{id} [get]
func (h *AccountHandler) Get(c *gin.Context) {
	account, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, account, nil)
}

// UpdateStatus godoc
// @Summary Change account status
// @Tags Accounts
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param payload body models.UpdateAccountStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /accounts/{id}/status [patch]
func (h *AccountHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateAccountStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	account, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, account, nil)
}

// UpdateProfile godoc
// @Summary Replace account profile
// @Description The profile variant must match the account role
// @Tags Accounts
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param payload body models.UpdateProfileRequest true "Profile"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Security BearerAuth
// @Router /accounts/{id}/profile [put]
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if !bindJSON(c, &req, "invalid profile payload") {
		return
	}
	account, err := h.service.UpdateProfile(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, account, nil)
}

// DeleteProfile godoc
// @Summary Soft delete account profile
// @Description Soft deletes the profile row and deactivates the account
// @Tags Accounts
// @Param id path string true "Account ID"
// @Success 204
// @Security BearerAuth
// @Router /accounts/{id}/profile [delete]
func (h *AccountHandler) DeleteProfile(c *gin.Context) {
	if err := h.service.DeleteProfile(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete account
// @Description Hard delete; profile, tokens and notification state cascade
// @Tags Accounts
// @Param id path string true "Account ID"
// @Success 204
// @Security BearerAuth
// @Router /accounts/{id} [delete]
func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RevokeSessions godoc
// @Summary Revoke account sessions
// @Description Revoke every refresh token of the account
// @Tags Accounts
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /accounts/{id}/revoke [post]
func (h *AccountHandler) RevokeSessions(c *gin.Context) {
	n, err := h.sessions.RevokeAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"revoked": n}, nil)
}
