package imaging

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/framepulse/framepulse-core/internal/models"
)

// DecodeBytes decodes a still image (JPEG or PNG) into a BGR frame.
func DecodeBytes(data []byte) (*Frame, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, models.E(models.KindUnsupportedFormat, "imaging.DecodeBytes", err)
	}
	return fromImage(img), nil
}

// DecodeFile decodes a still image file into a BGR frame.
func DecodeFile(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.E(models.KindNotFound, "imaging.DecodeFile", err)
		}
		return nil, models.E(models.KindInput, "imaging.DecodeFile", err)
	}
	f, err := DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func fromImage(img image.Image) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]uint8, w*h*3)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			pix[i] = uint8(bl >> 8)
			pix[i+1] = uint8(g >> 8)
			pix[i+2] = uint8(r >> 8)
			i += 3
		}
	}
	return NewBGR(pix, w, h)
}
