package imaging

// HSV conversion uses the OpenCV 8-bit convention: H in [0,180), S and V in
// [0,255]. Detector thresholds were tuned against that scale.

// BGRToHSV converts one pixel.
func BGRToHSV(b, g, r uint8) (hh, ss, vv float64) {
	bf, gf, rf := float64(b), float64(g), float64(r)
	maxV := bf
	if gf > maxV {
		maxV = gf
	}
	if rf > maxV {
		maxV = rf
	}
	minV := bf
	if gf < minV {
		minV = gf
	}
	if rf < minV {
		minV = rf
	}
	vv = maxV
	delta := maxV - minV
	if maxV > 0 {
		ss = delta / maxV * 255
	}
	if delta == 0 {
		return 0, ss, vv
	}
	var hue float64
	switch maxV {
	case rf:
		hue = 60 * (gf - bf) / delta
	case gf:
		hue = 120 + 60*(bf-rf)/delta
	default:
		hue = 240 + 60*(rf-gf)/delta
	}
	if hue < 0 {
		hue += 360
	}
	return hue / 2, ss, vv
}

// ChannelMeans returns the per-channel means of a BGR frame.
func ChannelMeans(f *Frame) (b, g, r float64) {
	if f.Channels != 3 || len(f.Pix) == 0 {
		return 0, 0, 0
	}
	n := f.Width * f.Height
	var sb, sg, sr float64
	for i := 0; i < n; i++ {
		sb += float64(f.Pix[3*i])
		sg += float64(f.Pix[3*i+1])
		sr += float64(f.Pix[3*i+2])
	}
	fn := float64(n)
	return sb / fn, sg / fn, sr / fn
}

// SaturationMean returns the mean HSV saturation of a BGR frame. Grayscale
// frames report zero saturation.
func SaturationMean(f *Frame) float64 {
	if f.Channels != 3 {
		return 0
	}
	n := f.Width * f.Height
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		_, s, _ := BGRToHSV(f.Pix[3*i], f.Pix[3*i+1], f.Pix[3*i+2])
		sum += s
	}
	return sum / float64(n)
}

// HueRangeRatio returns the fraction of pixels whose HSV values fall inside
// the given hue band with at least minS saturation and minV value.
func HueRangeRatio(f *Frame, hLo, hHi, minS, minV float64) float64 {
	if f.Channels != 3 {
		return 0
	}
	n := f.Width * f.Height
	if n == 0 {
		return 0
	}
	hits := 0
	for i := 0; i < n; i++ {
		h, s, v := BGRToHSV(f.Pix[3*i], f.Pix[3*i+1], f.Pix[3*i+2])
		if h >= hLo && h <= hHi && s >= minS && v >= minV {
			hits++
		}
	}
	return float64(hits) / float64(n)
}

// BrightLowSatRatio returns the fraction of pixels that are very bright and
// nearly colorless, the signature of analog snow.
func BrightLowSatRatio(f *Frame, minV, maxS float64) float64 {
	if f.Channels != 3 {
		return 0
	}
	n := f.Width * f.Height
	if n == 0 {
		return 0
	}
	hits := 0
	for i := 0; i < n; i++ {
		_, s, v := BGRToHSV(f.Pix[3*i], f.Pix[3*i+1], f.Pix[3*i+2])
		if v >= minV && s <= maxS {
			hits++
		}
	}
	return float64(hits) / float64(n)
}

// HSVHistogram builds a coarse 3-D HSV histogram (hBins x sBins x vBins),
// L1-normalized. Used for scene-change and sampling similarity.
func HSVHistogram(f *Frame, hBins, sBins, vBins int) []float64 {
	hist := make([]float64, hBins*sBins*vBins)
	n := f.Width * f.Height
	if n == 0 {
		return hist
	}
	if f.Channels == 1 {
		// Grayscale: saturation 0, hue 0; only value varies.
		for i := 0; i < n; i++ {
			vi := int(float64(f.Pix[i]) / 256 * float64(vBins))
			if vi >= vBins {
				vi = vBins - 1
			}
			hist[vi]++
		}
	} else {
		for i := 0; i < n; i++ {
			h, s, v := BGRToHSV(f.Pix[3*i], f.Pix[3*i+1], f.Pix[3*i+2])
			hi := int(h / 180 * float64(hBins))
			si := int(s / 256 * float64(sBins))
			vi := int(v / 256 * float64(vBins))
			if hi >= hBins {
				hi = hBins - 1
			}
			if si >= sBins {
				si = sBins - 1
			}
			if vi >= vBins {
				vi = vBins - 1
			}
			hist[(hi*sBins+si)*vBins+vi]++
		}
	}
	for i := range hist {
		hist[i] /= float64(n)
	}
	return hist
}
