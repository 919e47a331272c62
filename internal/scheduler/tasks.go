// Package scheduler enqueues and processes background follow-up tasks on an
// asynq queue backed by Redis.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskProspectFollowup = "prospect.followup"

// ProspectFollowupPayload identifies the submission whose qualification job
// should be polled and dispatched.
type ProspectFollowupPayload struct {
	RequestID string `json:"requestId"`
	TaskID    string `json:"taskId"`
	Whatsapp  string `json:"whatsapp"`
}

func NewProspectFollowupTask(payload ProspectFollowupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProspectFollowup, data), nil
}

func ParseProspectFollowupPayload(task *asynq.Task) (ProspectFollowupPayload, error) {
	var payload ProspectFollowupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ProspectFollowupPayload{}, err
	}
	return payload, nil
}
