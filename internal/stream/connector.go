package stream

import (
	"context"

	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/video"
)

// UnconfiguredConnector is the default when no decoder integration is
// wired. Every connect attempt fails as SourceUnavailable, which the worker
// surfaces through its status and counters.
type UnconfiguredConnector struct{}

func (UnconfiguredConnector) Connect(_ context.Context, url string, _ models.StreamKind) (video.FrameSource, error) {
	return nil, models.E(models.KindSourceUnavailable, "stream.Connect", "no stream decoder configured for "+url)
}
