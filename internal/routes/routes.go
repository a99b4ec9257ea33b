package routes

import (
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"clan-backend/internal/authz"
	"clan-backend/internal/controllers"
	"clan-backend/internal/listeners"
	"clan-backend/internal/repositories"
	"clan-backend/internal/services"
	"clan-backend/pkg/config"
	"clan-backend/pkg/eventbus"
	"clan-backend/pkg/metrics"
	"clan-backend/pkg/middleware"
	"clan-backend/pkg/service"
)

type Loggers struct {
	Main   *zap.Logger
	Auth   *zap.Logger
	Access *zap.Logger
}

// Deps: всё, что создаётся в main и нужно маршрутам.
type Deps struct {
	DB        *pgxpool.Pool
	CacheRepo repositories.CacheRepositoryInterface
	JWT       service.JWTService
	Registry  *authz.Registry
	Validate  *validator.Validate
	Bus       *eventbus.Bus
	Prom      *prometheus.Registry
	Metrics   *metrics.Metrics
	Config    *config.Config
}

func InitRouter(e *echo.Echo, deps Deps, loggers *Loggers) {
	loggers.Main.Info("InitRouter: Начало создания маршрутов")

	e.Use(metrics.HTTPMiddleware(deps.Metrics))
	e.GET("/metrics", metrics.Handler(deps.Prom))

	// --- 1. РЕПОЗИТОРИИ ---
	txManager := repositories.NewTxManager(deps.DB)
	userRepo := repositories.NewUserRepository(deps.DB, loggers.Auth)
	accessRepo := repositories.NewAccessRepository(deps.DB, txManager, loggers.Access)
	adminRepo := repositories.NewAccessAdminRepository(deps.DB, txManager, loggers.Access)
	resourceRepo := repositories.NewResourceRepository(deps.DB, loggers.Main)

	// --- 2. МОДЕЛЬ ДОСТУПА ---
	accessStore := services.NewCachedAccessStore(accessRepo, deps.CacheRepo, loggers.Access, deps.Config.Access.CacheTTL, deps.Metrics)
	listeners.NewAccessCacheListener(accessStore, loggers.Access).Register(deps.Bus)
	gatekeeper := authz.NewGatekeeper(accessStore, deps.Registry, loggers.Access, deps.Metrics)

	// --- 3. СЕРВИСЫ ---
	authService := services.NewAuthService(userRepo, deps.CacheRepo, deps.JWT, loggers.Auth, deps.Config.Auth)
	resourceService := services.NewResourceService(gatekeeper, resourceRepo, deps.Bus, deps.Validate, loggers.Main)
	adminService := services.NewAccessAdminService(gatekeeper, resourceRepo, adminRepo, deps.Bus, loggers.Access)
	matrixService := services.NewAccessMatrixService(gatekeeper, loggers.Access)

	// --- 4. РОУТЕРЫ ---
	api := e.Group("/api")
	authMW := middleware.NewAuthMiddleware(deps.JWT, userRepo, accessStore, loggers.Auth)
	secureGroup := api.Group("", authMW.Auth)

	runAuthRouter(api, controllers.NewAuthController(authService, loggers.Auth))
	runResourceRouter(secureGroup, controllers.NewResourceController(resourceService, loggers.Main))
	runAccessRouter(secureGroup, controllers.NewAccessController(matrixService, adminService, loggers.Access))

	loggers.Main.Info("InitRouter: Создание маршрутов завершено")
}
