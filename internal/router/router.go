// Package router assembles the gin engine and the route table.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/internal/handler"
	"github.com/dat-nglt/cusc-schedule/internal/middleware"
	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/internal/service"
	"github.com/dat-nglt/cusc-schedule/pkg/config"
	"github.com/dat-nglt/cusc-schedule/pkg/logger"
	corsmiddleware "github.com/dat-nglt/cusc-schedule/pkg/middleware/cors"
	reqidmiddleware "github.com/dat-nglt/cusc-schedule/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by New.
type Handlers struct {
	Auth           *handler.AuthHandler
	Accounts       *handler.AccountHandler
	Notifications  *handler.NotificationHandler
	ChangeRequests *handler.ChangeRequestHandler
	Programs       *handler.ProgramHandler
	Semesters      *handler.SemesterHandler
	Subjects       *handler.SubjectHandler
	Classes        *handler.ClassHandler
	Rooms          *handler.RoomHandler
	Schedules      *handler.ClassScheduleHandler
	Lecturers      *handler.LecturerHandler
	Export         *handler.ExportHandler
	Metrics        *handler.MetricsHandler
}

// New builds the engine with the shared middleware chain and every route.
func New(cfg *config.Config, logr *zap.Logger, tokens middleware.TokenVerifier, metrics *service.MetricsService, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.DefaultConfig(cfg.CORS.AllowedOrigins)))
	if cfg.Metrics.Enabled && metrics != nil {
		r.Use(middleware.Metrics(metrics))
	}

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", h.Metrics.Prometheus)
	}
	if cfg.Docs.Enabled && cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTrainingOfficer)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	lecturerOnly := middleware.RequireRoles(models.RoleLecturer)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/google", h.Auth.Google)
	auth.POST("/refresh", h.Auth.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))
	secured.POST("/auth/logout", h.Auth.Logout)
	secured.POST("/auth/change-password", h.Auth.ChangePassword)
	secured.GET("/auth/me", h.Auth.Me)

	accounts := secured.Group("/accounts", middleware.Audit(logr, "account"))
	accounts.POST("", staff, h.Accounts.Register)
	accounts.GET("", staff, h.Accounts.List)
	accounts.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleTrainingOfficer), middleware.SelfParam), h.Accounts.Get)
	accounts.PATCH("/:id/status", adminOnly, h.Accounts.UpdateStatus)
	accounts.PUT("/:id/profile", staff, h.Accounts.UpdateProfile)
	accounts.DELETE("/:id/profile", staff, h.Accounts.DeleteProfile)
	accounts.DELETE("/:id", adminOnly, h.Accounts.Delete)
	accounts.POST("/:id/revoke", adminOnly, h.Accounts.RevokeSessions)

	notifications := secured.Group("/notifications", staff, middleware.Audit(logr, "notification"))
	notifications.POST("", h.Notifications.Send)
	notifications.GET("", h.Notifications.List)
	notifications.GET("/:id", h.Notifications.Get)
	notifications.DELETE("/:id", h.Notifications.Delete)

	inbox := secured.Group("/me/notifications")
	inbox.GET("", h.Notifications.Inbox)
	inbox.GET("/unread-count", h.Notifications.UnreadCount)
	inbox.POST("/read-all", h.Notifications.MarkAllRead)
	inbox.POST("/:id/read", h.Notifications.MarkRead)

	changeRequests := secured.Group("/change-requests", middleware.Audit(logr, "change_request"))
	changeRequests.POST("", lecturerOnly, h.ChangeRequests.Create)
	changeRequests.GET("", h.ChangeRequests.List)
	changeRequests.GET("/:id", h.ChangeRequests.Get)
	changeRequests.POST("/:id/review", staff, h.ChangeRequests.Review)
	changeRequests.POST("/:id/cancel", lecturerOnly, h.ChangeRequests.Cancel)

	crud(secured, "/programs", staff, logr, h.Programs.List, h.Programs.Get, h.Programs.Create, h.Programs.Update, h.Programs.Delete)
	crud(secured, "/semesters", staff, logr, h.Semesters.List, h.Semesters.Get, h.Semesters.Create, h.Semesters.Update, h.Semesters.Delete)
	crud(secured, "/subjects", staff, logr, h.Subjects.List, h.Subjects.Get, h.Subjects.Create, h.Subjects.Update, h.Subjects.Delete)
	crud(secured, "/classes", staff, logr, h.Classes.List, h.Classes.Get, h.Classes.Create, h.Classes.Update, h.Classes.Delete)
	crud(secured, "/rooms", staff, logr, h.Rooms.ListRooms, h.Rooms.GetRoom, h.Rooms.CreateRoom, h.Rooms.UpdateRoom, h.Rooms.DeleteRoom)
	crud(secured, "/time-slots", staff, logr, h.Rooms.ListTimeSlots, h.Rooms.GetTimeSlot, h.Rooms.CreateTimeSlot, h.Rooms.UpdateTimeSlot, h.Rooms.DeleteTimeSlot)

	schedules := crud(secured, "/class-schedules", staff, logr, h.Schedules.List, h.Schedules.Get, h.Schedules.Create, h.Schedules.Update, h.Schedules.Delete)
	schedules.POST("/bulk", staff, h.Schedules.BulkCreate)

	lecturerOwner := middleware.RBAC(string(models.RoleAdmin), string(models.RoleTrainingOfficer), middleware.SelfParam)
	lecturers := secured.Group("/lecturers/:id", lecturerOwner, middleware.Audit(logr, "lecturer"))
	lecturers.GET("/assignments", h.Lecturers.ListAssignments)
	lecturers.POST("/assignments", staff, h.Lecturers.Assign)
	lecturers.DELETE("/assignments/:subjectId", staff, h.Lecturers.Unassign)
	lecturers.GET("/busy-slots", h.Lecturers.ListBusySlots)
	lecturers.POST("/busy-slots", h.Lecturers.AddBusySlot)
	lecturers.DELETE("/busy-slots/:slotId", h.Lecturers.RemoveBusySlot)
	lecturers.GET("/semester-busy-slots", h.Lecturers.ListSemesterBusySlots)
	lecturers.POST("/semester-busy-slots", h.Lecturers.AddSemesterBusySlot)
	lecturers.DELETE("/semester-busy-slots/:slotId", h.Lecturers.RemoveSemesterBusySlot)

	secured.GET("/export/timetable", h.Export.Timetable)

	return r
}

// crud mounts the usual five routes; reads are open to any signed-in
// account, writes require the given guard.
func crud(parent *gin.RouterGroup, path string, writeGuard gin.HandlerFunc, logr *zap.Logger, list, get, create, update, remove gin.HandlerFunc) *gin.RouterGroup {
	g := parent.Group(path, middleware.Audit(logr, path[1:]))
	g.GET("", list)
	g.GET("/:id", get)
	g.POST("", writeGuard, create)
	g.PUT("/:id", writeGuard, update)
	g.DELETE("/:id", writeGuard, remove)
	return g
}
