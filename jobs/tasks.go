package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAlertRetention is the task type pruning resolved alerts.
	TaskTypeAlertRetention = "alerts:retention"
)

// AlertRetentionPayload configures a retention run.
type AlertRetentionPayload struct {
	// Retention is how long resolved alerts are kept.
	Retention time.Duration `json:"retention"`
}

// NewAlertRetentionTask constructs an Asynq task.
func NewAlertRetentionTask(payload AlertRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAlertRetention, data), nil
}
