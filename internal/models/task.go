package models

import "time"

// TaskType selects the executor for a scheduled task.
type TaskType string

const (
	TaskBatchImage  TaskType = "batch_image"
	TaskSampleImage TaskType = "sample_image"
	TaskVideo       TaskType = "video"
)

func (t TaskType) Valid() bool {
	return t == TaskBatchImage || t == TaskSampleImage || t == TaskVideo
}

// TaskConfig describes what a task processes.
type TaskConfig struct {
	InputPath        string             `json:"input_path"`
	Pattern          string             `json:"pattern,omitempty"`
	Recursive        bool               `json:"recursive,omitempty"`
	Profile          string             `json:"profile,omitempty"`
	Level            Level              `json:"level,omitempty"`
	SampleRate       float64            `json:"sample_rate,omitempty"`
	Detectors        []string           `json:"detectors,omitempty"`
	CustomThresholds map[string]float64 `json:"custom_thresholds,omitempty"`
}

// TaskOutput describes where and how results are written.
type TaskOutput struct {
	Path     string   `json:"path,omitempty"`
	Formats  []string `json:"formats,omitempty"`
	KeepDays int      `json:"keep_days,omitempty"`
}

// Task is a persistent cron-driven job definition.
type Task struct {
	TaskID      string     `json:"task_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	TaskType    TaskType   `json:"task_type"`
	CronExpr    string     `json:"cron_expression"`
	Enabled     bool       `json:"enabled"`
	Config      TaskConfig `json:"config"`
	Output      TaskOutput `json:"output"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
}

// ExecutionStatus is the state of one task run.
type ExecutionStatus string

const (
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionPartial ExecutionStatus = "partial"
	ExecutionFailed  ExecutionStatus = "failed"
)

// Terminal reports whether the status admits no further updates.
func (s ExecutionStatus) Terminal() bool { return s != ExecutionRunning }

// Execution is the terminal record of one task run. History is append-only.
type Execution struct {
	ExecutionID   string          `json:"execution_id"`
	TaskID        string          `json:"task_id"`
	TaskName      string          `json:"task_name"`
	Status        ExecutionStatus `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	ItemsTotal    int             `json:"items_total"`
	NormalCount   int             `json:"normal_count"`
	AbnormalCount int             `json:"abnormal_count"`
	ErrorCount    int             `json:"error_count"`
	ReportPath    string          `json:"report_path,omitempty"`
	Error         string          `json:"error,omitempty"`
}
