package imaging

import "math"

// Bhattacharyya returns the Bhattacharyya distance between two normalized
// histograms: 0 for identical distributions, 1 for disjoint ones.
func Bhattacharyya(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 1
	}
	var bc float64
	for i := range a {
		bc += math.Sqrt(a[i] * b[i])
	}
	if bc > 1 {
		bc = 1
	}
	return math.Sqrt(1 - bc)
}

// HistCorrelation returns the Pearson correlation of two histograms in
// [-1,1].
func HistCorrelation(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	ma, sa := MeanStdF(a)
	mb, sb := MeanStdF(b)
	if sa == 0 || sb == 0 {
		if sa == 0 && sb == 0 {
			return 1
		}
		return 0
	}
	var cov float64
	for i := range a {
		cov += (a[i] - ma) * (b[i] - mb)
	}
	cov /= float64(len(a))
	return cov / (sa * sb)
}

// SSIM computes the global structural similarity index between two gray
// planes of identical dimensions, using the standard stabilizers for 8-bit
// depth. Callers are expected to decimate large frames first.
func SSIM(a, b []uint8, w, h int) float64 {
	if len(a) != w*h || len(b) != w*h || w*h == 0 {
		return 0
	}
	const (
		c1 = 6.5025  // (0.01*255)^2
		c2 = 58.5225 // (0.03*255)^2
	)
	ma, sa := MeanStd(a)
	mb, sb := MeanStd(b)
	var cov float64
	for i := range a {
		cov += (float64(a[i]) - ma) * (float64(b[i]) - mb)
	}
	cov /= float64(len(a))
	num := (2*ma*mb + c1) * (2*cov + c2)
	den := (ma*ma + mb*mb + c1) * (sa*sa + sb*sb + c2)
	if den == 0 {
		return 0
	}
	return num / den
}
