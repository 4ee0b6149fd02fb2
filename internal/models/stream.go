package models

import "time"

// StreamKind is the ingest protocol of a live source.
type StreamKind string

const (
	StreamRTSP StreamKind = "rtsp"
	StreamRTMP StreamKind = "rtmp"
)

func (k StreamKind) Valid() bool { return k == StreamRTSP || k == StreamRTMP }

// StreamStatus is the lifecycle state of a stream worker.
type StreamStatus string

const (
	StreamStarting StreamStatus = "starting"
	StreamRunning  StreamStatus = "running"
	StreamDegraded StreamStatus = "degraded"
	StreamStopped  StreamStatus = "stopped"
	StreamError    StreamStatus = "error"
)

// StreamConfig is the per-stream tuning accepted at start time. Zero values
// fall back to defaults.
type StreamConfig struct {
	SampleInterval       float64 `json:"sample_interval" yaml:"sample_interval"`
	DetectionInterval    float64 `json:"detection_interval" yaml:"detection_interval"`
	WindowSize           int     `json:"window_size" yaml:"window_size"`
	ResultsSize          int     `json:"results_size" yaml:"results_size"`
	MaxConsecutiveErrors int     `json:"max_consecutive_errors" yaml:"max_consecutive_errors"`
	ReconnectBackoffCap  float64 `json:"reconnect_backoff_cap" yaml:"reconnect_backoff_cap"`
	GraceSeconds         float64 `json:"grace_seconds" yaml:"grace_seconds"`
	Profile              string  `json:"profile" yaml:"profile"`
	Level                Level   `json:"level" yaml:"level"`
	Detectors            []string `json:"detectors,omitempty" yaml:"detectors,omitempty"`
	BaselinePath         string  `json:"baseline_path,omitempty" yaml:"baseline_path,omitempty"`
}

// StreamStats are the monotonic counters a worker maintains.
type StreamStats struct {
	FramesReceived   int64   `json:"frames_received"`
	FramesDetected   int64   `json:"frames_detected"`
	ConnectionErrors int64   `json:"connection_errors"`
	ReconnectCount   int64   `json:"reconnect_count"`
	FPS              float64 `json:"fps"`
}

// StreamDescriptor is the externally visible state of a stream worker.
type StreamDescriptor struct {
	StreamID          string       `json:"stream_id"`
	URL               string       `json:"url"`
	Kind              StreamKind   `json:"kind"`
	Status            StreamStatus `json:"status"`
	Config            StreamConfig `json:"config"`
	Stats             StreamStats  `json:"stats"`
	StartedAt         time.Time    `json:"started_at"`
	LastDetectionTime time.Time    `json:"last_detection_time,omitempty"`
	LastError         string       `json:"last_error,omitempty"`
}

// StreamResult is one detection round appended to the results ring. Exactly
// one of Image or Video is set depending on the snapshot size.
type StreamResult struct {
	StreamID    string        `json:"stream_id"`
	CompletedAt time.Time     `json:"completed_at"`
	FrameTime   float64       `json:"frame_time"`
	Image       *ImageVerdict `json:"image,omitempty"`
	Video       *VideoVerdict `json:"video,omitempty"`
}
