// ================================
// internal/metrics/metrics.go - Self-monitoring for FRAMEPULSE-CORE
// ================================

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepulse_core_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "framepulse_core_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Detection metrics
	DetectorRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepulse_core_detector_runs_total",
			Help: "Total number of detector executions",
		},
		[]string{"detector", "abnormal"},
	)

	DetectorTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepulse_core_detector_timeouts_total",
			Help: "Detector executions replaced by a synthetic timeout finding",
		},
		[]string{"detector"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "framepulse_core_pipeline_duration_seconds",
			Help:    "Image pipeline duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"level"},
	)

	VideoFramesSampled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepulse_core_video_frames_sampled_total",
			Help: "Frames selected by the video sampler",
		},
		[]string{"strategy"},
	)

	FrameBufferDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "framepulse_core_frame_buffer_depth",
			Help: "Current number of frames queued in a video frame buffer",
		},
		[]string{"pipeline"},
	)

	// Verdict cache metrics
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepulse_core_cache_requests_total",
			Help: "Total number of verdict cache requests",
		},
		[]string{"operation", "result"}, // get/set/delete, hit/miss/error
	)

	// Stream worker metrics
	StreamFramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepulse_core_stream_frames_received_total",
			Help: "Frames received from live stream sources",
		},
		[]string{"stream_id"},
	)

	StreamConnectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepulse_core_stream_connection_errors_total",
			Help: "Connection errors observed by stream workers",
		},
		[]string{"stream_id"},
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "framepulse_core_streams_active",
			Help: "Number of live stream workers currently running",
		},
	)

	ActiveWebSocketConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "framepulse_core_websocket_connections_active",
			Help: "Number of active WebSocket subscribers",
		},
		[]string{"stream_id"},
	)

	// Scheduler metrics
	SchedulerExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framepulse_core_scheduler_executions_total",
			Help: "Task executions by terminal status",
		},
		[]string{"task_type", "status"},
	)

	SchedulerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "framepulse_core_scheduler_queue_depth",
			Help: "Tasks currently queued or running",
		},
	)
)
