package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"bookly/config"
	"bookly/models"
	"bookly/services/notification"
	"bookly/services/settlement"
	"bookly/services/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	robcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// InitSettlementScheduler runs the settlement orchestrator on the
// configured cron schedule. Overlapping runs are safe but wasteful, so
// SkipIfStillRunning guards the entry.
func InitSettlementScheduler(orch settlement.Orchestrator, logger *zap.Logger) *robcron.Cron {
	cronLogger := robcron.PrintfLogger(zap.NewStdLog(logger))
	c := robcron.New(robcron.WithChain(
		robcron.Recover(cronLogger),
		robcron.SkipIfStillRunning(cronLogger),
	))

	schedule := config.AppConfig.OrchestratorSchedule
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		report, err := orch.RunOnce(ctx)
		if err != nil {
			logger.Error("Settlement run failed", zap.Error(err))
			return
		}
		if len(report.Errors) > 0 {
			logger.Warn("Settlement run finished with item errors",
				zap.Int("count", len(report.Errors)),
				zap.Strings("errors", report.Errors))
		}
	})
	if err != nil {
		log.Fatalf("[SettlementScheduler] Invalid schedule %q: %v", schedule, err)
	}

	c.Start()
	logger.Info("Settlement scheduler started", zap.String("schedule", schedule))
	return c
}

// InitEventWorker runs the async worker consuming settlement events in
// the background.
func InitEventWorker(notifSvc notification.NotificationService) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSettlementEvent, handleSettlementEventTask(notifSvc))

	// Start Redis health monitor
	go monitorRedisConnection()

	// Start async worker with retry logic
	go func() {
		log.Println("[EventWorker] Starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[EventWorker] Attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[EventWorker] Max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

func handleSettlementEventTask(notifSvc notification.NotificationService) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var event models.SettlementEvent
		if err := json.Unmarshal(task.Payload(), &event); err != nil {
			log.Printf("[EventHandler] Invalid payload: %v", err)
			return err
		}

		if err := notifSvc.NotifySettlementEvent(ctx, event); err != nil {
			log.Printf("[EventHandler] Failed to deliver notification: %v", err)
			return err
		}
		return nil
	}
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[EventWorker] Redis connection lost: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}
