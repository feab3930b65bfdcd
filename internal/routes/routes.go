package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"fieldops-system/internal/controllers"
	"fieldops-system/internal/listeners"
	"fieldops-system/internal/repositories"
	"fieldops-system/internal/services"
	"fieldops-system/pkg/config"
	"fieldops-system/pkg/eventbus"
	"fieldops-system/pkg/middleware"
	"fieldops-system/pkg/service"
	"fieldops-system/pkg/websocket"
)

func InitRouter(
	e *echo.Echo,
	dbConn *pgxpool.Pool,
	redisClient *redis.Client,
	jwtSvc service.JWTService,
	hub *websocket.Hub,
	bus *eventbus.Bus,
	logger *zap.Logger,
	cfg *config.Config,
) {
	logger.Info("InitRouter: Начало создания маршрутов")

	api := e.Group("/api")
	authMW := middleware.NewAuthMiddleware(jwtSvc, logger)
	txManager := repositories.NewTxManager(dbConn)

	// --- РЕПОЗИТОРИИ ---
	userRepo := repositories.NewUserRepository(dbConn)
	orderRepo := repositories.NewWorkOrderRepository(dbConn)
	historyRepo := repositories.NewStatusHistoryRepository(dbConn)
	billRepo := repositories.NewBillRepository(dbConn)
	inventoryRepo := repositories.NewInventoryRepository(dbConn)
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)

	// --- СЕРВИСЫ ---
	snapshotService := services.NewSnapshotService(inventoryRepo, orderRepo, cacheRepo, cfg.Cache, logger)
	orderService := services.NewWorkOrderService(txManager, orderRepo, historyRepo, billRepo, userRepo, snapshotService, bus, logger)
	inventoryService := services.NewInventoryService(txManager, inventoryRepo, snapshotService, logger)
	billingService := services.NewBillingService(txManager, billRepo, orderRepo, inventoryService, orderService, snapshotService, logger)
	transferService := services.NewTransferService(txManager, orderRepo, historyRepo, billRepo, userRepo, cacheRepo, orderService, snapshotService, cfg.Cache, logger)
	authService := services.NewAuthService(userRepo, jwtSvc, logger)

	// --- СЛУШАТЕЛИ СОБЫТИЙ ---
	listeners.NewNotificationListener(hub, logger).Register(bus)

	// --- КОНТРОЛЛЕРЫ ---
	authCtrl := controllers.NewAuthController(authService, logger)
	orderCtrl := controllers.NewWorkOrderController(orderService, logger)
	billingCtrl := controllers.NewBillingController(billingService, logger)
	inventoryCtrl := controllers.NewInventoryController(inventoryService, logger)
	transferCtrl := controllers.NewTransferController(transferService, logger)
	wsCtrl := controllers.NewWebsocketController(hub, logger)

	// --- РОУТЕРЫ ---
	secureGroup := api.Group("", authMW.Auth)

	runAuthRouter(api, authCtrl)
	runWorkOrderRouter(secureGroup, orderCtrl, authMW)
	runBillingRouter(secureGroup, billingCtrl)
	runInventoryRouter(secureGroup, inventoryCtrl, authMW)
	runTransferRouter(secureGroup, transferCtrl, authMW)
	runWebsocketRouter(secureGroup, wsCtrl)

	logger.Info("InitRouter: Создание маршрутов завершено")
}
