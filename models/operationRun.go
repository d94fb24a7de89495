package models

import (
	"time"
)

const (
	RunStatusQueued  = "queued"
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
)

const (
	RunTriggeredSchedule = "schedule"
	RunTriggeredManual   = "manual"
	RunTriggeredCLI      = "cli"
)

// OperationRun is the bookkeeping row for one reconciliation run.
type OperationRun struct {
	ID                 uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	CorrelationId      string     `gorm:"size:36;index" json:"correlationId"`
	Status             string     `gorm:"size:16" json:"status"`
	TriggeredBy        string     `gorm:"size:16" json:"triggeredBy"`
	StartedAt          *time.Time `json:"startedAt"`
	FinishedAt         *time.Time `json:"finishedAt"`
	DurationMs         int64      `json:"durationMs"`
	CandidateCount     int        `json:"candidateCount"`
	OperatedBySchedule int        `json:"operatedBySchedule"`
	OperatedByBulk     int        `json:"operatedByBulk"`
	TicketsCreated     int        `json:"ticketsCreated"`
	ErrorCount         int        `json:"errorCount"`
	LastError          string     `gorm:"size:1024" json:"lastError"`
	CreatedAt          time.Time  `json:"createdAt"`
}

func (OperationRun) TableName() string {
	return "operation_runs"
}
