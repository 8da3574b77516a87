package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/internal/handler"
	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/internal/service"
	"github.com/dat-nglt/cusc-schedule/pkg/config"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

type roleVerifier map[string]models.Role

func (v roleVerifier) VerifyToken(_ context.Context, token string) (*models.JWTClaims, error) {
	role, ok := v[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
	}
	return &models.JWTClaims{AccountID: token, Role: role}, nil
}

// Handlers are built on nil services: these tests only exercise routing and
// guards, which reject before any service is reached.
func testEngine(metricsEnabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Env: config.EnvDevelopment, APIPrefix: "/api/v1"}
	cfg.Metrics.Enabled = metricsEnabled
	metrics := service.NewMetricsService()
	tokens := roleVerifier{"student-1": models.RoleStudent, "lect-1": models.RoleLecturer}

	return New(cfg, zap.NewNop(), tokens, metrics, Handlers{
		Auth:           handler.NewAuthHandler(nil),
		Accounts:       handler.NewAccountHandler(nil, nil),
		Notifications:  handler.NewNotificationHandler(nil),
		ChangeRequests: handler.NewChangeRequestHandler(nil),
		Programs:       handler.NewProgramHandler(nil),
		Semesters:      handler.NewSemesterHandler(nil),
		Subjects:       handler.NewSubjectHandler(nil),
		Classes:        handler.NewClassHandler(nil),
		Rooms:          handler.NewRoomHandler(nil),
		Schedules:      handler.NewClassScheduleHandler(nil),
		Lecturers:      handler.NewLecturerHandler(nil),
		Export:         handler.NewExportHandler(nil),
		Metrics:        handler.NewMetricsHandler(metrics, nil),
	})
}

func do(r *gin.Engine, method, target, token string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestHealthIsPublic(t *testing.T) {
	r := testEngine(false)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ready", ""))
}

func TestMetricsRouteFollowsConfig(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, do(testEngine(false), http.MethodGet, "/metrics", ""))
	assert.Equal(t, http.StatusOK, do(testEngine(true), http.MethodGet, "/metrics", ""))
}

func TestSecuredRoutesRequireToken(t *testing.T) {
	r := testEngine(false)
	for _, target := range []string{"/api/v1/programs", "/api/v1/auth/me", "/api/v1/me/notifications", "/api/v1/export/timetable"} {
		assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, target, ""), target)
	}
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/v1/programs", "unknown"))
}

func TestWritesRequireStaffRole(t *testing.T) {
	r := testEngine(false)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/api/v1/programs", "student-1"))
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodDelete, "/api/v1/rooms/r1", "lect-1"))
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/api/v1/class-schedules/bulk", "lect-1"))
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/api/v1/notifications", "student-1"))
}

func TestChangeRequestGuards(t *testing.T) {
	r := testEngine(false)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/api/v1/change-requests", "student-1"))
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/api/v1/change-requests/cr-1/review", "lect-1"))
}

func TestLecturerRoutesAllowOnlySelf(t *testing.T) {
	r := testEngine(false)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/v1/lecturers/other/busy-slots", "lect-1"))
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/api/v1/lecturers/lect-1/assignments", "lect-1"))
}
