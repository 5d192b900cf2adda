package tasks

import (
	"encoding/json"

	"bookly/models"

	"github.com/hibiken/asynq"
)

const TypeSettlementEvent = "settlement:event"

func NewSettlementEventTask(event models.SettlementEvent) (*asynq.Task, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSettlementEvent, b), nil
}
