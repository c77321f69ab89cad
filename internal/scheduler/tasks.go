package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskActionDispatch = "actionqueue.dispatch"

const TaskHealthRecompute = "resources.health.recompute"

const TaskLeadRescore = "leadpool.rescore"

type ActionDispatchPayload struct {
	ItemID string `json:"itemId"`
}

type HealthRecomputePayload struct {
	Limit int `json:"limit"`
}

type LeadRescorePayload struct {
	Limit int `json:"limit"`
}

func NewActionDispatchTask(payload ActionDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskActionDispatch, data), nil
}

func ParseActionDispatchPayload(task *asynq.Task) (ActionDispatchPayload, error) {
	var payload ActionDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ActionDispatchPayload{}, err
	}
	return payload, nil
}

func NewHealthRecomputeTask(payload HealthRecomputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHealthRecompute, data), nil
}

func ParseHealthRecomputePayload(task *asynq.Task) (HealthRecomputePayload, error) {
	var payload HealthRecomputePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return HealthRecomputePayload{}, err
	}
	return payload, nil
}

func NewLeadRescoreTask(payload LeadRescorePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadRescore, data), nil
}

func ParseLeadRescorePayload(task *asynq.Task) (LeadRescorePayload, error) {
	var payload LeadRescorePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadRescorePayload{}, err
	}
	return payload, nil
}
