package video

import "github.com/framepulse/framepulse-core/internal/models"

// videoSeverity grades a video issue by how far past its minimum the
// measured quantity landed.
func videoSeverity(ratio float64) models.Severity {
	switch {
	case ratio < 1.5:
		return models.SeverityInfo
	case ratio < 2.0:
		return models.SeverityWarning
	default:
		return models.SeverityError
	}
}

// mergeFlags turns a per-sample abnormality mask into time segments.
// Adjacent flagged samples join; segments shorter than minDuration are
// dropped as noise. Samples must be in timestamp order.
func mergeFlags(samples []Sample, flags []bool, minDuration float64) []models.Segment {
	var segments []models.Segment
	var cur *models.Segment
	for i, s := range samples {
		if flags[i] {
			if cur == nil {
				cur = &models.Segment{
					StartTime: s.TimestampSec, EndTime: s.TimestampSec,
					StartFrame: s.Index, EndFrame: s.Index,
				}
			} else {
				cur.EndTime = s.TimestampSec
				cur.EndFrame = s.Index
			}
			continue
		}
		if cur != nil {
			if cur.Duration() >= minDuration {
				segments = append(segments, *cur)
			}
			cur = nil
		}
	}
	if cur != nil && cur.Duration() >= minDuration {
		segments = append(segments, *cur)
	}
	return segments
}

// mergeClose joins segments whose gap is at most maxGap seconds.
func mergeClose(segments []models.Segment, maxGap float64) []models.Segment {
	if len(segments) == 0 {
		return segments
	}
	out := []models.Segment{segments[0]}
	for _, s := range segments[1:] {
		lastIdx := len(out) - 1
		if s.StartTime-out[lastIdx].EndTime <= maxGap {
			out[lastIdx].EndTime = s.EndTime
			out[lastIdx].EndFrame = s.EndFrame
			continue
		}
		out = append(out, s)
	}
	return out
}

// totalDuration sums segment lengths.
func totalDuration(segments []models.Segment) float64 {
	var total float64
	for _, s := range segments {
		total += s.Duration()
	}
	return total
}

// unionDuration measures the union of possibly overlapping segment sets.
// Within one issue segments never overlap, but across issues they can.
func unionDuration(all [][]models.Segment) float64 {
	type edge struct {
		t     float64
		delta int
	}
	var edges []edge
	for _, segs := range all {
		for _, s := range segs {
			if s.EndTime <= s.StartTime {
				continue
			}
			edges = append(edges, edge{s.StartTime, 1}, edge{s.EndTime, -1})
		}
	}
	if len(edges) == 0 {
		return 0
	}
	// insertion sort; segment counts are small
	for i := 1; i < len(edges); i++ {
		for j := i; j > 0 && (edges[j].t < edges[j-1].t || (edges[j].t == edges[j-1].t && edges[j].delta > edges[j-1].delta)); j-- {
			edges[j], edges[j-1] = edges[j-1], edges[j]
		}
	}
	var total, openAt float64
	depth := 0
	for _, e := range edges {
		if e.delta == 1 {
			if depth == 0 {
				openAt = e.t
			}
			depth++
		} else {
			depth--
			if depth == 0 {
				total += e.t - openAt
			}
		}
	}
	return total
}
