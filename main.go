package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookly/config"
	"bookly/cron"
	"bookly/database"
	bookingRepo "bookly/database/repository/booking"
	settlementRepo "bookly/database/repository/settlement"
	"bookly/gateway"
	"bookly/handlers"
	"bookly/middleware"
	"bookly/routes"
	"bookly/services/notification"
	"bookly/services/settlement"
	"bookly/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	mongoClient, err := database.Connect()
	if err != nil {
		logger.Sugar().Fatalf("main: failed to connect to MongoDB: %v", err)
	}
	db := mongoClient.Database(config.AppConfig.DatabaseName)

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := settlementRepo.EnsureIndexes(indexCtx, db); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure indexes: %v", err)
	}
	cancelIndex()

	cache := utils.NewCacheClient(config.AppConfig.RedisCacheDB)
	utils.StartHealthMonitor(mongoClient, cache)

	// repositories.
	confRepo := settlementRepo.NewMongoConfirmationRepo(db)
	earningRepo := settlementRepo.NewMongoEarningRepo(db)
	cycleRepo := settlementRepo.NewMongoCycleRepo(db)
	chargeRepo := settlementRepo.NewMongoFeeChargeRepo(db)
	payoutRepo := settlementRepo.NewMongoPayoutRepo(db)
	bkRepo := bookingRepo.NewMongoBookingRepo(db)

	// payment gateway: real Stripe when a key is configured, simulator
	// otherwise.
	var gw settlement.PaymentGateway
	if config.AppConfig.StripeKey != "" {
		gw = gateway.NewStripeGateway(config.AppConfig.StripeKey, "usd", logger)
	} else {
		logger.Warn("No Stripe key configured, using simulated gateway")
		gw = gateway.NewSimulatedGateway(logger)
	}

	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
	emitter := notification.NewAsynqEventEmitter(redisOpts, logger)
	defer emitter.Close()

	// services.
	feeSource := &settlement.CachedFeeSource{
		Cache:   cache,
		Default: config.AppConfig.PlatformFeePercent,
		Logger:  logger,
	}
	cycleScheduler := &settlement.DefaultCycleScheduler{
		Repo:       cycleRepo,
		LengthDays: config.AppConfig.CycleLengthDays,
		GraceDays:  config.AppConfig.CycleCutoffGraceDays,
		Logger:     logger,
	}
	ledger := &settlement.DefaultEarningsLedger{
		Repo:   earningRepo,
		Cycles: cycleScheduler,
		Fees:   feeSource,
		Events: emitter,
		Logger: logger,
	}
	confirmationManager := &settlement.DefaultConfirmationManager{
		Repo:         confRepo,
		Ledger:       ledger,
		Appointments: bkRepo,
		Slots:        bkRepo,
		Timeout:      config.AppConfig.ConfirmationTimeout(),
		Logger:       logger,
	}
	feeProcessor := &settlement.DefaultFeeChargeProcessor{
		Charges:        chargeRepo,
		Earnings:       earningRepo,
		Ledger:         ledger,
		Gateway:        gw,
		Events:         emitter,
		Logger:         logger,
		MaxAttempts:    config.AppConfig.ChargeMaxAttempts,
		BaseRetryDelay: config.AppConfig.ChargeBaseRetryDelay(),
	}
	payoutProcessor := &settlement.DefaultPayoutProcessor{
		Payouts:  payoutRepo,
		Charges:  chargeRepo,
		Earnings: earningRepo,
		Ledger:   ledger,
		Cycles:   cycleScheduler,
		Gateway:  gw,
		Events:   emitter,
		Logger:   logger,
	}
	orchestrator := &settlement.DefaultOrchestrator{
		Appointments:  bkRepo,
		Confirmations: confirmationManager,
		Earnings:      earningRepo,
		Cycles:        cycleScheduler,
		Charges:       feeProcessor,
		Payouts:       payoutProcessor,
		Logger:        logger,
		SweepLimit:    500,
	}

	// background workers.
	scheduler := cron.InitSettlementScheduler(orchestrator, logger)
	defer scheduler.Stop()

	notificationService := notification.NewLogNotificationService(logger)
	cron.InitEventWorker(notificationService)

	// handlers.
	settlementHandler := handlers.NewSettlementHandler(confirmationManager, ledger)
	adminHandler := &handlers.AdminHandler{
		Confirmations: confirmationManager,
		Fees:          feeProcessor,
		Payouts:       payoutProcessor,
		Orchestrator:  orchestrator,
		FeeSource:     feeSource,
		Cycles:        cycleRepo,
		Charges:       chargeRepo,
		PayoutRecords: payoutRepo,
	}

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	routes.RegisterRoutes(router, settlementHandler, adminHandler)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}
	if err := mongoClient.Disconnect(ctx); err != nil {
		logger.Sugar().Warnf("main: mongo disconnect: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
