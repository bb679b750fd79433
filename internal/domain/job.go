package domain

import "time"

// PipelineRun is the persisted record of a finished run.
type PipelineRun struct {
	ID         string     `gorm:"type:text;primaryKey" json:"id"`
	Pipeline   Pipeline   `gorm:"type:text;not null;index" json:"pipeline"`
	Source     SourceKind `gorm:"type:text" json:"source,omitempty"`
	Params     RunParams  `gorm:"type:text" json:"params,omitempty"`
	Status     RunStatus  `gorm:"type:text;not null" json:"status"`
	Total      int        `gorm:"default:0" json:"total"`
	Success    int        `gorm:"default:0" json:"success"`
	Failed     int        `gorm:"default:0" json:"failed"`
	Message    string     `gorm:"type:text" json:"message,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `gorm:"index" json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TableName returns the database table name for PipelineRun.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// RunFromState converts a terminal snapshot into a history record.
func RunFromState(st RunState, source SourceKind, params RunParams) *PipelineRun {
	return &PipelineRun{
		ID:         st.RunID,
		Pipeline:   st.Pipeline,
		Source:     source,
		Params:     params,
		Status:     st.Status,
		Total:      st.Total,
		Success:    st.Success,
		Failed:     st.Failed,
		Message:    st.Message,
		StartedAt:  st.StartedAt,
		FinishedAt: st.FinishedAt,
	}
}
