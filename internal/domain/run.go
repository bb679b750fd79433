package domain

import "time"

// Pipeline names a scheduler that owns a RunState.
type Pipeline string

const (
	PipelineDownload Pipeline = "download"
	PipelineEmbed    Pipeline = "embed"
	PipelineSync     Pipeline = "sync"
)

// RunStatus is the lifecycle of a single pipeline run.
type RunStatus string

const (
	RunIdle     RunStatus = "idle"
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunError    RunStatus = "error"
)

// Terminal reports whether no further progress will be made.
func (s RunStatus) Terminal() bool {
	return s == RunComplete || s == RunError
}

// ItemSummary identifies a track in progress events.
type ItemSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// SummaryOf builds the progress-event view of a track.
func SummaryOf(t *Track) ItemSummary {
	return ItemSummary{ID: t.ID, Title: t.Title, Artist: t.Artist}
}

// RunState is a point-in-time snapshot of a pipeline run.
type RunState struct {
	RunID      string        `json:"run_id,omitempty"`
	Pipeline   Pipeline      `json:"pipeline"`
	Status     RunStatus     `json:"status"`
	Total      int           `json:"total"`
	Current    int           `json:"current"`
	Success    int           `json:"success"`
	Failed     int           `json:"failed"`
	Active     int           `json:"active"`
	Items      []ItemSummary `json:"items"`
	Item       *ItemSummary  `json:"item,omitempty"`
	Message    string        `json:"message,omitempty"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}
