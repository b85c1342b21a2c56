package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/course-registration/api/swagger"
	"github.com/noah-isme/course-registration/internal/bootstrap"
	"github.com/noah-isme/course-registration/internal/handler"
	"github.com/noah-isme/course-registration/internal/middleware"
	"github.com/noah-isme/course-registration/internal/models"
	"github.com/noah-isme/course-registration/pkg/config"
	"github.com/noah-isme/course-registration/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-registration/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-registration/pkg/middleware/requestid"
)

// NewRouter registers every HTTP route on a fresh gin engine.
func NewRouter(app *bootstrap.App) *gin.Engine {
	cfg := app.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(app.Logger))
	r.Use(corsmiddleware.New(corsmiddleware.Options{AllowedOrigins: cfg.CORS.AllowedOrigins}))
	r.Use(middleware.Metrics(app.Metrics, "/health", "/ready", "/metrics"))

	metrics := handler.NewMetricsHandler(app.Metrics, app.Checks...)
	r.GET("/health", metrics.Health)
	r.GET("/ready", metrics.Ready)
	r.GET("/metrics", metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	students := handler.NewStudentHandler(app.Registration)
	teachers := handler.NewTeacherHandler(app.Registration)
	courses := handler.NewCourseHandler(app.Registration, app.Export)
	auth := handler.NewAuthHandler(app.Auth)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/token", auth.Token)
	api.GET("/auth/me", middleware.JWT(app.Auth), auth.Me)

	api.GET("/students", students.List)
	api.GET("/students/:id", students.Get)
	api.GET("/students/:id/credits", students.Credits)
	api.GET("/teachers", teachers.List)
	api.GET("/teachers/:id", teachers.Get)
	api.GET("/courses", courses.List)
	api.GET("/courses/:id", courses.Get)
	api.GET("/courses/:id/students", courses.Students)
	api.GET("/courses/:id/roster.csv", courses.RosterCSV)
	api.GET("/courses/:id/roster.pdf", courses.RosterPDF)

	admin := guard(cfg.Auth.Enabled, app.Auth, string(models.RoleAdmin))
	owner := guard(cfg.Auth.Enabled, app.Auth, string(models.RoleAdmin), middleware.Self)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(app.Logger, action, resource)
	}

	api.POST("/students", chain(admin, audit("add_student", "student"), students.Create)...)
	api.POST("/teachers", chain(admin, audit("add_teacher", "teacher"), teachers.Create)...)
	api.DELETE("/teachers/:id", chain(admin, audit("delete_teacher", "teacher"), teachers.Delete)...)
	api.DELETE("/teachers/:id/courses/:courseId", chain(owner, audit("delete_teacher_course", "course"), teachers.DeleteCourse)...)
	api.POST("/courses", chain(admin, audit("add_course", "course"), courses.Create)...)
	api.POST("/courses/:id/registrations", chain(admin, audit("register", "course"), courses.Register)...)

	return r
}

// guard returns the authentication chain for mutating routes, or nothing when
// authentication is switched off.
func guard(enabled bool, validator middleware.TokenValidator, allowed ...string) []gin.HandlerFunc {
	if !enabled {
		return nil
	}
	return []gin.HandlerFunc{middleware.JWT(validator), middleware.RBAC(allowed...)}
}

func chain(guards []gin.HandlerFunc, handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(guards)+len(handlers))
	out = append(out, guards...)
	return append(out, handlers...)
}
