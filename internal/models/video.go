package models

// VideoMetadata describes the probed source.
type VideoMetadata struct {
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	FPS          float64 `json:"fps"`
	FrameCount   int     `json:"frame_count"`
	Duration     float64 `json:"duration"`
	Codec        string  `json:"codec,omitempty"`
	SampledCount int     `json:"sampled_count"`
}

// Segment is a contiguous time span during which an issue is active.
// Instantaneous events (scene changes) have StartTime == EndTime.
type Segment struct {
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	StartFrame int     `json:"start_frame"`
	EndFrame   int     `json:"end_frame"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 { return s.EndTime - s.StartTime }

// VideoIssue aggregates all segments of one issue type across a video.
type VideoIssue struct {
	IssueType        string                 `json:"issue_type"`
	Severity         Severity               `json:"severity"`
	Segments         []Segment              `json:"segments"`
	AbnormalDuration float64                `json:"abnormal_duration"`
	Explanation      string                 `json:"explanation,omitempty"`
	Suggestions      []string               `json:"suggestions,omitempty"`
	Summary          map[string]interface{} `json:"summary,omitempty"`
}

// VideoVerdict is the rollup for one video source. OverallScore is
// 1 - union_abnormal_duration/duration clamped to [0,1].
type VideoVerdict struct {
	Metadata      VideoMetadata  `json:"metadata"`
	IsAbnormal    bool           `json:"is_abnormal"`
	Severity      Severity       `json:"severity"`
	Issues        []VideoIssue   `json:"issues"`
	OverallScore  float64        `json:"overall_score"`
	FrameVerdicts []ImageVerdict `json:"frame_verdicts,omitempty"`
	ElapsedMs     float64        `json:"elapsed_ms"`
	Partial       bool           `json:"partial,omitempty"`
	Note          string         `json:"note,omitempty"`
	Source        string         `json:"source,omitempty"`
}
