// Package jobs defines the background task names and payloads shared
// by the API and the worker.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskRefreshPitWall = "refresh:pit_wall"
	TaskBuildDigest    = "digest:build"
)

type RefreshPitWallPayload struct {
	Reason string `json:"reason,omitempty"`
}

type BuildDigestPayload struct {
	// Date is YYYY-MM-DD; empty means the worker's current day.
	Date string `json:"date,omitempty"`
}

// NewRefreshPitWallTask enqueues a cache warm-up. No retries; the next
// scheduled run picks up where a failed one left off.
func NewRefreshPitWallTask(reason string) (*asynq.Task, error) {
	payload, err := json.Marshal(RefreshPitWallPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRefreshPitWall, payload, asynq.Queue("refresh"), asynq.MaxRetry(0)), nil
}

// NewBuildDigestTask builds the digest for the given date.
func NewBuildDigestTask(date string) (*asynq.Task, error) {
	payload, err := json.Marshal(BuildDigestPayload{Date: date})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBuildDigest, payload, asynq.MaxRetry(2)), nil
}
