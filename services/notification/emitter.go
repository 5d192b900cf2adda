package notification

import (
	"context"
	"fmt"

	"bookly/models"
	"bookly/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// AsynqEventEmitter publishes settlement events onto the redis-backed task
// queue. The dispatch worker consumes them and hands each one to the
// NotificationService, so a slow or down transport never blocks settlement.
type AsynqEventEmitter struct {
	Client *asynq.Client
	Logger *zap.Logger
}

func NewAsynqEventEmitter(redisOpts asynq.RedisClientOpt, logger *zap.Logger) *AsynqEventEmitter {
	return &AsynqEventEmitter{
		Client: asynq.NewClient(redisOpts),
		Logger: logger,
	}
}

func (e *AsynqEventEmitter) Emit(ctx context.Context, event models.SettlementEvent) error {
	task, err := tasks.NewSettlementEventTask(event)
	if err != nil {
		return fmt.Errorf("failed to build settlement event task: %w", err)
	}
	info, err := e.Client.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Queue("default"))
	if err != nil {
		return fmt.Errorf("failed to enqueue settlement event: %w", err)
	}
	e.Logger.Debug("Settlement event enqueued",
		zap.String("taskId", info.ID),
		zap.String("type", string(event.Type)))
	return nil
}

func (e *AsynqEventEmitter) Close() error {
	return e.Client.Close()
}
