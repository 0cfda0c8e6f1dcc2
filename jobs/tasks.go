package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSecurityFailedLoginScan is the task type for the periodic
	// failed-login burst scan.
	TaskSecurityFailedLoginScan = "security:failed_login_scan"
)

// FailedLoginScanPayload tunes the scan window and threshold.
type FailedLoginScanPayload struct {
	WindowMinutes int `json:"window_minutes"`
	Threshold     int `json:"threshold"`
}

// NewFailedLoginScanTask constructs an Asynq task.
func NewFailedLoginScanTask(payload FailedLoginScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSecurityFailedLoginScan, data), nil
}
