package recorder

import (
	"time"

	"TdxBridge/internal/model"
)

// SyncRun records one financial sync pass.
type SyncRun struct {
	ID          string    `json:"id"`
	Trigger     string    `json:"trigger"` // "cron", "api", "chat", "cli", "startup"
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Downloaded  int       `json:"downloaded"`
	TotalRemote int       `json:"total_remote"`
	Missing     []string  `json:"missing"`
	Error       string    `json:"error,omitempty"`
}

// NewSyncRun builds a SyncRun from a finished pass.
func NewSyncRun(trigger string, started time.Time, res model.SyncResult) *SyncRun {
	return &SyncRun{
		Trigger:     trigger,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		Downloaded:  res.Downloaded,
		TotalRemote: res.TotalRemote,
		Missing:     res.Missing,
		Error:       res.Error,
	}
}

// JobRun records one execution of a scheduled job step.
type JobRun struct {
	ID         string
	Job        string // "refresh_bars", "sync_financial"
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string // "ok" or "failed"
	Error      string
}

// Recorder persists sync and job history.
type Recorder interface {
	RecordSync(run *SyncRun) error
	RecordJob(run *JobRun) error
	// RecentSyncs returns up to limit runs, most recent first.
	RecentSyncs(limit int) ([]SyncRun, error)
	Close() error
}
