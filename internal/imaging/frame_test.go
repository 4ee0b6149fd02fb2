package imaging

import "testing"

func TestFrameValidate(t *testing.T) {
	if err := NewGray(make([]uint8, 16), 4, 4).Validate(); err != nil {
		t.Fatalf("valid gray frame rejected: %v", err)
	}
	if err := NewBGR(make([]uint8, 48), 4, 4).Validate(); err != nil {
		t.Fatalf("valid bgr frame rejected: %v", err)
	}
	if err := NewGray(make([]uint8, 15), 4, 4).Validate(); err == nil {
		t.Fatal("size mismatch accepted")
	}
	f := &Frame{Width: 4, Height: 4, Channels: 2, Pix: make([]uint8, 32)}
	if err := f.Validate(); err == nil {
		t.Fatal("two-channel frame accepted")
	}
}

func TestGrayBT601(t *testing.T) {
	// pure green pixel: 0.587*255 = 149.685 -> 150
	f := NewBGR([]uint8{0, 255, 0}, 1, 1)
	gray := f.Gray()
	if gray[0] != 150 {
		t.Fatalf("green luminance = %d, want 150", gray[0])
	}
	// white stays white
	f = NewBGR([]uint8{255, 255, 255}, 1, 1)
	if g := f.Gray()[0]; g != 255 {
		t.Fatalf("white luminance = %d", g)
	}
}

func TestDownsample(t *testing.T) {
	f := NewGray(make([]uint8, 1920*1080), 1920, 1080)
	small := f.Downsample(480)
	if small.Width != 480 {
		t.Fatalf("width = %d, want 480", small.Width)
	}
	if small.Height != 270 {
		t.Fatalf("height = %d, want 270", small.Height)
	}
	// already small frames come back unchanged
	g := NewGray(make([]uint8, 100*100), 100, 100)
	if got := g.Downsample(480); got != g {
		t.Fatal("small frame was copied")
	}
}
