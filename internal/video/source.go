package video

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

// FrameSource is the decoded-frame provider boundary. Implementations wrap
// an actual decoder; the engine only ever sees raw frames.
type FrameSource interface {
	// Metadata is available after opening, before the first Next call.
	Metadata() models.VideoMetadata
	// Next returns the next decoded frame, or io.EOF at end of stream.
	Next() (*imaging.Frame, error)
	Close() error
}

// SliceSource serves pre-decoded frames. It backs tests and the in-repo
// image-sequence path; timestamps are synthesized from the configured fps
// when frames carry none.
type SliceSource struct {
	frames []*imaging.Frame
	meta   models.VideoMetadata
	pos    int
}

// NewSliceSource builds a source over frames at the given fps.
func NewSliceSource(frames []*imaging.Frame, fps float64) (*SliceSource, error) {
	if len(frames) == 0 {
		return nil, models.E(models.KindInput, "video.NewSliceSource", "no frames")
	}
	if fps <= 0 {
		fps = 25
	}
	first := frames[0]
	meta := models.VideoMetadata{
		Width:      first.Width,
		Height:     first.Height,
		FPS:        fps,
		FrameCount: len(frames),
		Duration:   float64(len(frames)) / fps,
	}
	return &SliceSource{frames: frames, meta: meta}, nil
}

func (s *SliceSource) Metadata() models.VideoMetadata { return s.meta }

func (s *SliceSource) Next() (*imaging.Frame, error) {
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	if f.TimestampSec == 0 && s.pos > 0 {
		f.TimestampSec = float64(s.pos) / s.meta.FPS
	}
	f.Index = s.pos
	s.pos++
	return f, nil
}

func (s *SliceSource) Close() error { return nil }

// DirSource decodes an image-sequence directory lazily, one frame per file,
// sorted by file name. It is the in-repo FrameSource for video-shaped inputs
// that arrive as extracted frames.
type DirSource struct {
	paths []string
	meta  models.VideoMetadata
	fps   float64
	pos   int
}

// NewDirSource opens a directory of jpeg/png frames played back at fps.
// The first frame is decoded eagerly to fill the metadata.
func NewDirSource(dir string, fps float64) (*DirSource, error) {
	const op = "video.NewDirSource"
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.E(models.KindSourceUnavailable, op, "no such directory: "+dir)
		}
		return nil, models.E(models.KindSourceUnavailable, op, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, models.E(models.KindInput, op, "no image frames in "+dir)
	}
	sort.Strings(paths)
	if fps <= 0 {
		fps = 25
	}
	first, err := imaging.DecodeFile(paths[0])
	if err != nil {
		return nil, err
	}
	meta := models.VideoMetadata{
		Width:      first.Width,
		Height:     first.Height,
		FPS:        fps,
		FrameCount: len(paths),
		Duration:   float64(len(paths)) / fps,
	}
	return &DirSource{paths: paths, meta: meta, fps: fps}, nil
}

func (s *DirSource) Metadata() models.VideoMetadata { return s.meta }

func (s *DirSource) Next() (*imaging.Frame, error) {
	if s.pos >= len(s.paths) {
		return nil, io.EOF
	}
	f, err := imaging.DecodeFile(s.paths[s.pos])
	if err != nil {
		return nil, err
	}
	f.Index = s.pos
	f.TimestampSec = float64(s.pos) / s.fps
	s.pos++
	return f, nil
}

func (s *DirSource) Close() error { return nil }
