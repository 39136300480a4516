package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RunStatus captures the lifecycle of a master schedule run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "QUEUED"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusFinished   RunStatus = "FINISHED"
	RunStatusFailed     RunStatus = "FAILED"
)

// Terminal reports whether the run will not change any more.
func (s RunStatus) Terminal() bool {
	return s == RunStatusFinished || s == RunStatusFailed
}

// ScheduleRun is a persisted master schedule generation. Config holds the
// engine input and Result the engine output, both as JSONB.
type ScheduleRun struct {
	ID           string             `db:"id" json:"id"`
	ParentRunID  *string            `db:"parent_run_id" json:"parent_run_id,omitempty"`
	Status       RunStatus          `db:"status" json:"status"`
	ScheduleType string             `db:"schedule_type" json:"schedule_type"`
	Seed         int64              `db:"seed" json:"seed"`
	Progress     int                `db:"progress" json:"progress"`
	Config       types.JSONText     `db:"config" json:"config"`
	Result       types.NullJSONText `db:"result" json:"result,omitempty"`
	ErrorMessage *string            `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string             `db:"created_by" json:"created_by"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time         `db:"finished_at" json:"finished_at,omitempty"`
}

// ScheduleRunFilter narrows run listings.
type ScheduleRunFilter struct {
	Status       *RunStatus
	ScheduleType string
	CreatedBy    string
	Page         int
	PageSize     int
}

// ScheduleRunUpdate carries the mutable columns of a run. Nil fields are left untouched.
type ScheduleRunUpdate struct {
	Status       *RunStatus
	Progress     *int
	Result       types.JSONText
	ErrorMessage *string
	FinishedAt   *time.Time
}
