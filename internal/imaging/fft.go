package imaging

import "math"

// FFTMagnitudes computes the magnitude spectrum of a real signal after
// mean removal, zero-padded to the next power of two. Only the first half
// of the spectrum (positive frequencies, DC excluded) is returned.
func FFTMagnitudes(signal []float64) []float64 {
	n := len(signal)
	if n < 4 {
		return nil
	}
	mean, _ := MeanStdF(signal)
	size := 1
	for size < n {
		size <<= 1
	}
	re := make([]float64, size)
	im := make([]float64, size)
	for i, v := range signal {
		re[i] = v - mean
	}
	fft(re, im)
	half := size / 2
	out := make([]float64, half-1)
	for k := 1; k < half; k++ {
		out[k-1] = math.Hypot(re[k], im[k])
	}
	return out
}

// fft is an in-place iterative radix-2 Cooley-Tukey transform. len(re) must
// be a power of two.
func fft(re, im []float64) {
	n := len(re)
	// bit reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}
	for length := 2; length <= n; length <<= 1 {
		ang := -2 * math.Pi / float64(length)
		wRe, wIm := math.Cos(ang), math.Sin(ang)
		for start := 0; start < n; start += length {
			curRe, curIm := 1.0, 0.0
			half := length / 2
			for k := 0; k < half; k++ {
				i, j := start+k, start+k+half
				tRe := re[j]*curRe - im[j]*curIm
				tIm := re[j]*curIm + im[j]*curRe
				re[j] = re[i] - tRe
				im[j] = im[i] - tIm
				re[i] += tRe
				im[i] += tIm
				curRe, curIm = curRe*wRe-curIm*wIm, curRe*wIm+curIm*wRe
			}
		}
	}
}

// SpectralPeakRatio returns the ratio of the strongest non-DC spectral peak
// to the spectral mean, plus the peak's frequency index. Periodic stripes
// produce a dominant peak; flat or noisy content stays near 1.
func SpectralPeakRatio(signal []float64) (ratio float64, peakIndex int) {
	mags := FFTMagnitudes(signal)
	if len(mags) == 0 {
		return 0, 0
	}
	mean, _ := MeanStdF(mags)
	if mean == 0 {
		return 0, 0
	}
	peak := 0.0
	for i, m := range mags {
		if m > peak {
			peak = m
			peakIndex = i + 1
		}
	}
	return peak / mean, peakIndex
}
