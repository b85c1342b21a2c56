// Package bootstrap assembles storage, caching and services from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-registration/internal/handler"
	"github.com/noah-isme/course-registration/internal/models"
	"github.com/noah-isme/course-registration/internal/repository"
	"github.com/noah-isme/course-registration/internal/service"
	"github.com/noah-isme/course-registration/pkg/cache"
	"github.com/noah-isme/course-registration/pkg/config"
	"github.com/noah-isme/course-registration/pkg/database"
	"github.com/noah-isme/course-registration/pkg/storage"
)

// App holds every dependency the entrypoints need.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *service.MetricsService
	Cache        *service.CacheService
	Registration *service.RegistrationService
	Auth         *service.AuthService
	Export       *service.ExportService
	Checks       []handler.ReadinessCheck

	closers []func() error
}

type studentStore interface {
	Create(ctx context.Context, student models.Student) error
	FindByID(ctx context.Context, id int64) (models.Student, error)
	List(ctx context.Context) ([]models.Student, error)
	Update(ctx context.Context, student models.Student) error
	Delete(ctx context.Context, id int64) error
}

type teacherStore interface {
	Create(ctx context.Context, teacher models.Teacher) error
	FindByID(ctx context.Context, id int64) (models.Teacher, error)
	List(ctx context.Context) ([]models.Teacher, error)
	Update(ctx context.Context, teacher models.Teacher) error
	Delete(ctx context.Context, id int64) error
}

type courseStore interface {
	Create(ctx context.Context, course models.Course) error
	FindByID(ctx context.Context, id int64) (models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
	Update(ctx context.Context, course models.Course) error
	Delete(ctx context.Context, id int64) error
}

type stores struct {
	students  studentStore
	teachers  teacherStore
	courses   courseStore
	snapshots []service.Snapshotter
}

// Build wires the application for the configured backend and cache driver.
// Callers must Close the returned App.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: logger, Metrics: service.NewMetricsService()}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	st, err := app.buildStores(ctx)
	if err != nil {
		return nil, err
	}

	if err = app.buildCache(); err != nil {
		return nil, err
	}

	opts := []service.RegistrationServiceOption{
		service.WithReportCache(app.Cache),
		service.WithRegistrationMetrics(app.Metrics),
		service.WithSnapshots(st.snapshots...),
	}
	if cfg.Storage.Autosave && len(st.snapshots) > 0 {
		opts = append(opts, service.WithAutosave(cfg.Storage.AutosaveRetry))
	}

	validate := validator.New()
	app.Registration = service.NewRegistrationService(st.students, st.teachers, st.courses, validate, logger, opts...)
	app.Export = service.NewExportService(app.Registration, logger)
	app.Auth = service.NewAuthService(validate, logger, service.AuthConfig{
		AccessTokenSecret: cfg.Auth.Secret,
		AccessTokenExpiry: cfg.Auth.Expiration,
		AdminUsername:     cfg.Auth.AdminUsername,
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
	})

	logger.Info("application assembled",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("cache", cfg.Cache.Driver),
		zap.Int("snapshots", len(st.snapshots)),
	)
	return app, nil
}

// Close releases database and cache connections in reverse order.
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, a.closers[i]())
	}
	a.closers = nil
	return err
}

func (a *App) buildStores(ctx context.Context) (*stores, error) {
	switch a.Config.Storage.Backend {
	case config.BackendJSON, "":
		return a.jsonStores()
	case config.BackendPostgres:
		db, err := database.NewPostgres(ctx, a.Config.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return a.sqlStores(ctx, db)
	case config.BackendSQLite:
		db, err := database.NewSQLite(a.Config.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return a.sqlStores(ctx, db)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.Config.Storage.Backend)
	}
}

func (a *App) jsonStores() (*stores, error) {
	files, err := storage.NewLocalStorage(a.Config.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("prepare data dir: %w", err)
	}

	students := repository.NewMemoryRepository[models.Student]("student")
	teachers := repository.NewMemoryRepository[models.Teacher]("teacher")
	courses := repository.NewMemoryRepository[models.Course]("course")

	return &stores{
		students: students,
		teachers: teachers,
		courses:  courses,
		snapshots: []service.Snapshotter{
			repository.NewJSONFile(files, a.Config.Storage.CoursesFile, courses),
			repository.NewJSONFile(files, a.Config.Storage.StudentsFile, students),
			repository.NewJSONFile(files, a.Config.Storage.TeachersFile, teachers),
		},
	}, nil
}

func (a *App) sqlStores(ctx context.Context, db *sqlx.DB) (*stores, error) {
	a.closers = append(a.closers, db.Close)
	if err := repository.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	a.Checks = append(a.Checks, handler.ReadinessCheck{Name: "database", Check: db.PingContext})
	return &stores{
		students: repository.NewStudentRepository(db),
		teachers: repository.NewTeacherRepository(db),
		courses:  repository.NewCourseRepository(db),
	}, nil
}

func (a *App) buildCache() error {
	cfg := a.Config.Cache
	switch cfg.Driver {
	case config.CacheNone, "":
		return nil
	case config.CacheMemory:
		a.Cache = service.NewCacheService(repository.NewMemoryCache(cfg.TTL), a.Metrics, cfg.TTL, a.Logger, true)
		return nil
	case config.CacheRedis:
		client, err := cache.NewRedis(a.Config.Redis)
		if err != nil {
			return err
		}
		redisCache := repository.NewRedisCache(client, a.Logger)
		a.closers = append(a.closers, redisCache.Close)
		a.Checks = append(a.Checks, handler.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
		a.Cache = service.NewCacheService(redisCache, a.Metrics, cfg.TTL, a.Logger, true)
		return nil
	default:
		return fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}
