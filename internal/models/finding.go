package models

// Severity ranks how bad an abnormal finding is. The order here is the
// comparison order used by rollups.
type Severity string

const (
	SeverityNormal  Severity = "normal"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

var severityRank = map[Severity]int{
	SeverityNormal:  0,
	SeverityInfo:    1,
	SeverityWarning: 2,
	SeverityError:   3,
}

// Rank returns the numeric ordering of a severity; unknown values rank lowest.
func (s Severity) Rank() int { return severityRank[s] }

// MaxSeverity returns the worse of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Level is the compute budget tier for a detection run.
type Level string

const (
	LevelFast     Level = "fast"
	LevelStandard Level = "standard"
	LevelDeep     Level = "deep"
)

func (l Level) Valid() bool {
	return l == LevelFast || l == LevelStandard || l == LevelDeep
}

// DetectorDescriptor is the registration-time capability record of one
// detector. Suppresses lists detector names whose findings are silenced when
// this detector fires.
type DetectorDescriptor struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	IssueType   string   `json:"issue_type"`
	Levels      []Level  `json:"levels"`
	Priority    int      `json:"priority"`
	Suppresses  []string `json:"suppresses,omitempty"`
}

// SupportsLevel reports whether the descriptor runs at the given level.
func (d DetectorDescriptor) SupportsLevel(level Level) bool {
	for _, l := range d.Levels {
		if l == level {
			return true
		}
	}
	return false
}

// Finding is one detector's output on one frame. Score is in the detector's
// native scale; Confidence is the normalized distance from the threshold.
type Finding struct {
	Detector    string                 `json:"detector"`
	IssueType   string                 `json:"issue_type"`
	IsAbnormal  bool                   `json:"is_abnormal"`
	Score       float64                `json:"score"`
	Threshold   float64                `json:"threshold"`
	Confidence  float64                `json:"confidence"`
	Severity    Severity               `json:"severity"`
	Explanation string                 `json:"explanation"`
	Causes      []string               `json:"causes,omitempty"`
	Suggestions []string               `json:"suggestions,omitempty"`
	Evidence    map[string]interface{} `json:"evidence,omitempty"`
}

// ImageVerdict is the rollup for one frame.
type ImageVerdict struct {
	IsAbnormal   bool      `json:"is_abnormal"`
	PrimaryIssue string    `json:"primary_issue,omitempty"`
	Severity     Severity  `json:"severity"`
	Findings     []Finding `json:"findings"`
	Suppressed   []string  `json:"suppressed,omitempty"`
	ElapsedMs    float64   `json:"elapsed_ms"`
	Source       string    `json:"source,omitempty"`
	TimestampSec float64   `json:"timestamp_sec,omitempty"`
	FrameIndex   int       `json:"frame_index,omitempty"`
}

// AbnormalFindings returns the abnormal findings that were not suppressed.
func (v *ImageVerdict) AbnormalFindings() []Finding {
	suppressed := make(map[string]bool, len(v.Suppressed))
	for _, name := range v.Suppressed {
		suppressed[name] = true
	}
	var out []Finding
	for _, f := range v.Findings {
		if f.IsAbnormal && !suppressed[f.Detector] {
			out = append(out, f)
		}
	}
	return out
}
