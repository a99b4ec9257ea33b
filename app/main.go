package main

import (
	"context"
	"net/http"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"clan-backend/internal/authz"
	"clan-backend/internal/repositories"
	"clan-backend/internal/routes"
	"clan-backend/pkg/config"
	"clan-backend/pkg/customvalidator"
	"clan-backend/pkg/database/migrations"
	"clan-backend/pkg/database/postgresql"
	"clan-backend/pkg/eventbus"
	apperrors "clan-backend/pkg/errors"
	applogger "clan-backend/pkg/logger"
	"clan-backend/pkg/metrics"
	appmiddleware "clan-backend/pkg/middleware"
	"clan-backend/pkg/service"
	"clan-backend/pkg/utils"
)

func main() {
	cfg := config.New()

	e := echo.New()
	e.HideBanner = true
	logger := applogger.NewLogger(cfg.Log.Level, cfg.Log.File)
	defer func() { _ = logger.Sync() }()

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("Обнаружена паника",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err, nil)
				_ = utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))
	e.Use(middleware.RequestID())
	e.Use(appmiddleware.RequestLogger(logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{"Content-Disposition"},
	}))

	// Реестр ресурсов нужен раньше валидатора: field_list проверяет колонки по нему.
	registry, err := loadRegistry(cfg.Access.RegistryPath)
	if err != nil {
		logger.Fatal("Ошибка загрузки реестра ресурсов", zap.Error(err))
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := customvalidator.RegisterCustomValidations(v, registry); err != nil {
		logger.Fatal("Ошибка регистрации кастомных правил валидации", zap.Error(err))
	}
	e.Validator = utils.NewValidator(v)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("Не удалось подключиться к PostgreSQL", zap.Error(err))
	}
	defer dbConn.Close()

	if cfg.Postgres.RunMigrations {
		if err := migrations.Up(dbConn, logger); err != nil {
			logger.Fatal("Ошибка миграций", zap.Error(err))
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		// без Redis права читаются напрямую из БД
		logger.Warn("Redis недоступен, кеш доступа отключён до восстановления", zap.Error(err), zap.String("address", cfg.Redis.Address))
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL, logger.Named("jwt"))

	routes.InitRouter(e, routes.Deps{
		DB:        dbConn,
		CacheRepo: repositories.NewRedisCacheRepository(redisClient),
		JWT:       jwtSvc,
		Registry:  registry,
		Validate:  v,
		Bus:       eventbus.New(logger.Named("eventbus")),
		Prom:      promRegistry,
		Metrics:   metrics.NewMetrics(promRegistry),
		Config:    cfg,
	}, &routes.Loggers{
		Main:   logger,
		Auth:   logger.Named("auth"),
		Access: logger.Named("access"),
	})

	go func() {
		logger.Info("Сервер запущен", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Ошибка запуска сервера", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки сервера", zap.Error(err))
	}
	logger.Info("Сервер остановлен")
}

func loadRegistry(path string) (*authz.Registry, error) {
	if path == "" {
		return authz.DefaultRegistry()
	}
	return authz.LoadRegistry(path)
}
