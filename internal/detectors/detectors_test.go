package detectors

import (
	"testing"

	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/models"
)

func stdCfg() Config {
	return Config{Level: models.LevelStandard}
}

type lcg struct{ state uint64 }

func (r *lcg) next() uint64 {
	r.state = r.state*6364136223846793005 + 1442695040888963407
	return r.state >> 33
}

func (r *lcg) intn(n int) int { return int(r.next() % uint64(n)) }

func grayFrame(w, h int, fill func(x, y int) uint8) *imaging.Frame {
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix[y*w+x] = fill(x, y)
		}
	}
	return imaging.NewGray(pix, w, h)
}

func solidBGR(w, h int, b, g, r uint8) *imaging.Frame {
	pix := make([]uint8, w*h*3)
	for i := 0; i < w*h; i++ {
		pix[3*i] = b
		pix[3*i+1] = g
		pix[3*i+2] = r
	}
	return imaging.NewBGR(pix, w, h)
}

func checkerFrame(w, h, cell int) *imaging.Frame {
	return grayFrame(w, h, func(x, y int) uint8 {
		if ((x/cell)+(y/cell))%2 == 0 {
			return 220
		}
		return 30
	})
}

func noisyFrame(base *imaging.Frame, sigma float64, seed uint64) *imaging.Frame {
	r := &lcg{state: seed}
	pix := make([]uint8, len(base.Pix))
	for i, v := range base.Pix {
		var s float64
		for k := 0; k < 12; k++ {
			s += float64(r.intn(1000)) / 1000.0
		}
		val := float64(v) + (s-6)*sigma
		if val < 0 {
			val = 0
		}
		if val > 255 {
			val = 255
		}
		pix[i] = uint8(val)
	}
	out := *base
	out.Pix = pix
	return &out
}

func TestBlurDetector(t *testing.T) {
	d := &BlurDetector{}

	sharp, err := d.Detect(checkerFrame(128, 128, 4), stdCfg())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if sharp.IsAbnormal {
		t.Fatalf("checkerboard flagged as blurred, score=%v", sharp.Score)
	}

	flat := grayFrame(128, 128, func(x, y int) uint8 { return uint8(120 + x/32) })
	blurred, err := d.Detect(flat, stdCfg())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !blurred.IsAbnormal {
		t.Fatalf("near-flat frame not flagged, score=%v", blurred.Score)
	}
	if blurred.IssueType != "blur" {
		t.Fatalf("issue type = %s", blurred.IssueType)
	}
	if blurred.Severity == models.SeverityNormal {
		t.Fatal("abnormal finding has normal severity")
	}
}

func TestBrightnessDetector_OverBright(t *testing.T) {
	d := &BrightnessDetector{}
	f, err := d.Detect(grayFrame(64, 64, func(x, y int) uint8 { return 250 }), stdCfg())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !f.IsAbnormal || f.IssueType != "over_bright" {
		t.Fatalf("finding = %+v", f)
	}
	// 250 exceeds 235 + (255-235)*0.5 = 245 but is not > 250
	if f.Severity != models.SeverityWarning {
		t.Fatalf("severity = %s, want warning", f.Severity)
	}
}

func TestBrightnessDetector_UnderBright(t *testing.T) {
	d := &BrightnessDetector{}
	f, err := d.Detect(grayFrame(64, 64, func(x, y int) uint8 { return 12 }), stdCfg())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !f.IsAbnormal || f.IssueType != "under_bright" {
		t.Fatalf("finding = %+v", f)
	}
}

func TestBrightnessDetector_Normal(t *testing.T) {
	d := &BrightnessDetector{}
	f, err := d.Detect(grayFrame(64, 64, func(x, y int) uint8 { return 128 }), stdCfg())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if f.IsAbnormal {
		t.Fatalf("mid-gray flagged: %+v", f)
	}
}

func TestSignalLossDetector(t *testing.T) {
	d := &SignalLossDetector{}

	black, err := d.Detect(grayFrame(64, 64, func(x, y int) uint8 { return 1 }), stdCfg())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !black.IsAbnormal || black.IssueType != "black_screen" {
		t.Fatalf("finding = %+v", black)
	}
	if black.Severity != models.SeverityError {
		t.Fatalf("severity = %s, want error for mean < 3", black.Severity)
	}

	white, err := d.Detect(grayFrame(64, 64, func(x, y int) uint8 { return 253 }), stdCfg())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !white.IsAbnormal || white.IssueType != "white_screen" {
		t.Fatalf("finding = %+v", white)
	}

	live, err := d.Detect(checkerFrame(64, 64, 8), stdCfg())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if live.IsAbnormal {
		t.Fatalf("live frame flagged: %+v", live)
	}
}

func TestColorDetector_BlueScreen(t *testing.T) {
	d := &ColorDetector{}
	f, err := d.Detect(solidBGR(64, 64, 255, 0, 0), stdCfg())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !f.IsAbnormal || f.IssueType != "blue_screen" {
		t.Fatalf("finding = %+v", f)
	}
	if f.Severity != models.SeverityError {
		t.Fatalf("severity = %s", f.Severity)
	}
}

func TestColorDetector_GrayscaleInput(t *testing.T) {
	d := &ColorDetector{}
	f, err := d.Detect(checkerFrame(64, 64, 8), stdCfg())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !f.IsAbnormal || f.IssueType != "low_saturation" {
		t.Fatalf("finding = %+v", f)
	}
	if f.Confidence != 1 {
		t.Fatalf("confidence = %v, want 1 for chroma-free input", f.Confidence)
	}
}

func TestColorDetector_NormalColor(t *testing.T) {
	d := &ColorDetector{}
	// saturated but balanced mosaic of primary colors
	w, h := 60, 60
	pix := make([]uint8, w*h*3)
	for i := 0; i < w*h; i++ {
		switch i % 3 {
		case 0:
			pix[3*i] = 200
		case 1:
			pix[3*i+1] = 200
		default:
			pix[3*i+2] = 200
		}
	}
	f, err := d.Detect(imaging.NewBGR(pix, w, h), stdCfg())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if f.IsAbnormal {
		t.Fatalf("balanced mosaic flagged: %+v", f)
	}
}

func TestNoiseDetector_StrictProfile(t *testing.T) {
	d := &NoiseDetector{}
	base := grayFrame(160, 120, func(x, y int) uint8 { return uint8(60 + x/2) })
	noisy := noisyFrame(base, 10, 42)

	cfg := Config{
		Thresholds: map[string]float64{"noise_threshold": 10},
		Level:      models.LevelStandard,
	}
	f, err := d.Detect(noisy, cfg)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !f.IsAbnormal {
		t.Fatalf("sigma-10 noise under strict threshold not flagged, score=%v", f.Score)
	}
	if f.IssueType != "gaussian_noise" {
		t.Fatalf("issue type = %s", f.IssueType)
	}

	clean, err := d.Detect(base, cfg)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if clean.IsAbnormal {
		t.Fatalf("clean gradient flagged as noisy, score=%v", clean.Score)
	}
}

func TestContrastDetector(t *testing.T) {
	d := &ContrastDetector{}
	low, err := d.Detect(grayFrame(64, 64, func(x, y int) uint8 { return uint8(120 + (x+y)%6) }), stdCfg())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !low.IsAbnormal {
		t.Fatalf("low-contrast frame not flagged, score=%v", low.Score)
	}
	high, err := d.Detect(checkerFrame(64, 64, 8), stdCfg())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if high.IsAbnormal {
		t.Fatalf("checker flagged as low contrast: %+v", high)
	}
}
