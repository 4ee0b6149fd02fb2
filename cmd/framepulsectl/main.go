// framepulsectl runs diagnoses from the command line without a server.
//
// Exit codes: 0 success, 1 unexpected error, 2 invalid arguments, 3 input
// not found, 4 all items failed, 5 partial failure.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/framepulse/framepulse-core/internal/config"
	"github.com/framepulse/framepulse-core/internal/detectors"
	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/pipeline"
	"github.com/framepulse/framepulse-core/internal/services"
	"github.com/framepulse/framepulse-core/internal/video"
	"github.com/framepulse/framepulse-core/pkg/cache"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

const (
	exitOK          = 0
	exitUnexpected  = 1
	exitInvalidArgs = 2
	exitNotFound    = 3
	exitAllFailed   = 4
	exitPartial     = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		mode      = flag.String("mode", "image", "image | batch | video | detectors")
		profile   = flag.String("profile", "normal", "threshold profile")
		level     = flag.String("level", "standard", "detection level: fast | standard | deep")
		detNames  = flag.String("detectors", "", "comma-separated detector allowlist")
		recursive = flag.Bool("recursive", false, "recurse into subdirectories in batch mode")
		pattern   = flag.String("pattern", "", "file name pattern in batch mode")
		fps       = flag.Float64("fps", 25, "frame rate for image-sequence video input")
		quiet     = flag.Bool("quiet", false, "suppress logs, print only the JSON result")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: framepulsectl [flags] <path>")
		flag.PrintDefaults()
		return exitInvalidArgs
	}
	input := flag.Arg(0)

	logLevel := "info"
	if *quiet {
		logLevel = "error"
	}
	logg := logger.New(logLevel)

	registry, err := detectors.NewDefaultRegistry()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUnexpected
	}
	pipe := pipeline.New(registry, logg)
	engine := video.NewEngine(pipe, logg)
	profiles := config.NewProfileStore(logg)

	detCfg := config.DetectionConfig{
		Profile:           *profile,
		Level:             *level,
		ParallelDetection: true,
		DetectorTimeoutMs: 2000,
	}
	diag := services.NewDiagnosisService(pipe, profiles, cache.NewMemory(logg), detCfg, time.Minute, logg)
	videoSvc := services.NewVideoService(engine, diag, config.VideoConfig{
		SampleStrategy:   "interval",
		SampleInterval:   1.0,
		MaxFrames:        300,
		Workers:          4,
		MinEventDuration: 0.5,
	}, logg)

	opts := services.DiagnoseOptions{Profile: *profile, Level: models.Level(*level)}
	if *detNames != "" {
		opts.Detectors = strings.Split(*detNames, ",")
	}

	ctx := context.Background()
	switch *mode {
	case "image":
		verdict, err := diag.DiagnoseImageFile(ctx, input, opts)
		if err != nil {
			return reportError(err)
		}
		printJSON(verdict)
		return exitOK
	case "batch":
		paths, err := services.EnumerateImages(input, *pattern, *recursive)
		if err != nil {
			return reportError(err)
		}
		result, err := diag.DiagnoseBatch(ctx, paths, opts)
		if err != nil {
			return reportError(err)
		}
		printJSON(result)
		switch {
		case result.Summary.Errors == result.Summary.Total:
			return exitAllFailed
		case result.Summary.Errors > 0:
			return exitPartial
		}
		return exitOK
	case "video":
		verdict, err := videoSvc.DiagnoseVideo(ctx, input, services.VideoDiagnoseOptions{
			DiagnoseOptions: opts,
			FPS:             *fps,
		})
		if err != nil {
			return reportError(err)
		}
		printJSON(verdict)
		if verdict.Partial {
			return exitPartial
		}
		return exitOK
	case "detectors":
		printJSON(map[string]interface{}{
			"image": diag.ListDetectors(),
			"video": videoSvc.ListVideoDetectors(),
		})
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		return exitInvalidArgs
	}
}

func reportError(err error) int {
	fmt.Fprintln(os.Stderr, err)
	switch models.KindOf(err) {
	case models.KindNotFound:
		return exitNotFound
	case models.KindInput, models.KindConfig, models.KindUnsupportedFormat:
		return exitInvalidArgs
	default:
		return exitUnexpected
	}
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(data))
}
