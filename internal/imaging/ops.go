package imaging

import (
	"math"
	"sort"
)

// MeanStd returns the mean and population standard deviation of a pixel
// plane.
func MeanStd(pix []uint8) (mean, std float64) {
	if len(pix) == 0 {
		return 0, 0
	}
	var sum, sqSum float64
	for _, p := range pix {
		v := float64(p)
		sum += v
		sqSum += v * v
	}
	n := float64(len(pix))
	mean = sum / n
	variance := sqSum/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// MeanStdF is MeanStd over float64 samples.
func MeanStdF(vals []float64) (mean, std float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	var sum, sqSum float64
	for _, v := range vals {
		sum += v
		sqSum += v * v
	}
	n := float64(len(vals))
	mean = sum / n
	variance := sqSum/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// MinMax returns the extreme values of a pixel plane.
func MinMax(pix []uint8) (lo, hi uint8) {
	if len(pix) == 0 {
		return 0, 0
	}
	lo, hi = pix[0], pix[0]
	for _, p := range pix {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	return lo, hi
}

// Percentile returns the p-th percentile (0..100) of a pixel plane using a
// 256-bin histogram.
func Percentile(pix []uint8, p float64) float64 {
	if len(pix) == 0 {
		return 0
	}
	var hist [256]int
	for _, v := range pix {
		hist[v]++
	}
	target := p / 100 * float64(len(pix))
	cum := 0
	for v := 0; v < 256; v++ {
		cum += hist[v]
		if float64(cum) >= target {
			return float64(v)
		}
	}
	return 255
}

// Histogram256 returns the normalized 256-bin histogram of a pixel plane.
func Histogram256(pix []uint8) []float64 {
	hist := make([]float64, 256)
	if len(pix) == 0 {
		return hist
	}
	for _, v := range pix {
		hist[v]++
	}
	n := float64(len(pix))
	for i := range hist {
		hist[i] /= n
	}
	return hist
}

// LaplacianVariance returns the variance of the 4-neighbor Laplacian
// response, the classic focus measure.
func LaplacianVariance(gray []uint8, w, h int) float64 {
	resp := LaplacianResponse(gray, w, h)
	_, std := MeanStdF(resp)
	return std * std
}

// LaplacianResponse returns the raw Laplacian response on interior pixels.
func LaplacianResponse(gray []uint8, w, h int) []float64 {
	if w < 3 || h < 3 {
		return nil
	}
	out := make([]float64, 0, (w-2)*(h-2))
	for y := 1; y < h-1; y++ {
		row := y * w
		for x := 1; x < w-1; x++ {
			i := row + x
			v := float64(gray[i-w]) + float64(gray[i+w]) +
				float64(gray[i-1]) + float64(gray[i+1]) - 4*float64(gray[i])
			out = append(out, v)
		}
	}
	return out
}

// SobelMeanMagnitude returns the mean gradient magnitude over interior
// pixels.
func SobelMeanMagnitude(gray []uint8, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	var sum float64
	var n int
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx, gy := sobelAt(gray, w, x, y)
			sum += math.Sqrt(gx*gx + gy*gy)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func sobelAt(gray []uint8, w, x, y int) (gx, gy float64) {
	i := y*w + x
	tl, tc, tr := float64(gray[i-w-1]), float64(gray[i-w]), float64(gray[i-w+1])
	ml, mr := float64(gray[i-1]), float64(gray[i+1])
	bl, bc, br := float64(gray[i+w-1]), float64(gray[i+w]), float64(gray[i+w+1])
	gx = (tr + 2*mr + br) - (tl + 2*ml + bl)
	gy = (bl + 2*bc + br) - (tl + 2*tc + tr)
	return gx, gy
}

// BrennerGradient returns the mean squared two-pixel horizontal difference,
// a cheap sharpness measure.
func BrennerGradient(gray []uint8, w, h int) float64 {
	if w < 3 {
		return 0
	}
	var sum float64
	var n int
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w-2; x++ {
			d := float64(gray[row+x+2]) - float64(gray[row+x])
			sum += d * d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// EdgeDensity returns the fraction of interior pixels whose gradient
// magnitude exceeds thr.
func EdgeDensity(gray []uint8, w, h int, thr float64) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	var edges, n int
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx, gy := sobelAt(gray, w, x, y)
			if math.Sqrt(gx*gx+gy*gy) > thr {
				edges++
			}
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(edges) / float64(n)
}

// MedianResidual returns the mean absolute difference between each interior
// pixel and its 3x3 neighborhood median. Impulsive noise raises it sharply.
func MedianResidual(gray []uint8, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	var window [9]uint8
	var sum float64
	var n int
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			k := 0
			for dy := -1; dy <= 1; dy++ {
				base := (y+dy)*w + x
				window[k] = gray[base-1]
				window[k+1] = gray[base]
				window[k+2] = gray[base+1]
				k += 3
			}
			med := median9(window)
			d := float64(gray[y*w+x]) - float64(med)
			if d < 0 {
				d = -d
			}
			sum += d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func median9(v [9]uint8) uint8 {
	s := v[:]
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s[4]
}

// LaplacianSigmaMAD estimates noise sigma from the median absolute deviation
// of the Laplacian response (robust against texture).
func LaplacianSigmaMAD(gray []uint8, w, h int) float64 {
	resp := LaplacianResponse(gray, w, h)
	if len(resp) == 0 {
		return 0
	}
	abs := make([]float64, len(resp))
	for i, v := range resp {
		abs[i] = math.Abs(v)
	}
	sort.Float64s(abs)
	med := abs[len(abs)/2]
	return med / 0.6745
}

// Integral holds summed-area tables of values and squared values, enabling
// O(1) local mean/std queries.
type Integral struct {
	w, h  int
	sum   []float64
	sqSum []float64
}

// NewIntegral builds summed-area tables for a pixel plane.
func NewIntegral(gray []uint8, w, h int) *Integral {
	it := &Integral{w: w + 1, h: h + 1}
	it.sum = make([]float64, it.w*it.h)
	it.sqSum = make([]float64, it.w*it.h)
	for y := 1; y <= h; y++ {
		var rowSum, rowSq float64
		for x := 1; x <= w; x++ {
			v := float64(gray[(y-1)*w+(x-1)])
			rowSum += v
			rowSq += v * v
			i := y*it.w + x
			it.sum[i] = it.sum[i-it.w] + rowSum
			it.sqSum[i] = it.sqSum[i-it.w] + rowSq
		}
	}
	return it
}

// RegionMeanStd returns mean and std of the rectangle [x0,x1) x [y0,y1).
func (it *Integral) RegionMeanStd(x0, y0, x1, y1 int) (mean, std float64) {
	n := float64((x1 - x0) * (y1 - y0))
	if n <= 0 {
		return 0, 0
	}
	s := it.rect(it.sum, x0, y0, x1, y1)
	sq := it.rect(it.sqSum, x0, y0, x1, y1)
	mean = s / n
	variance := sq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

func (it *Integral) rect(tab []float64, x0, y0, x1, y1 int) float64 {
	return tab[y1*it.w+x1] - tab[y0*it.w+x1] - tab[y1*it.w+x0] + tab[y0*it.w+x0]
}

// RowColProjections returns per-row and per-column mean intensity profiles.
func RowColProjections(gray []uint8, w, h int) (rows, cols []float64) {
	rows = make([]float64, h)
	cols = make([]float64, w)
	for y := 0; y < h; y++ {
		base := y * w
		for x := 0; x < w; x++ {
			v := float64(gray[base+x])
			rows[y] += v
			cols[x] += v
		}
	}
	for y := range rows {
		rows[y] /= float64(w)
	}
	for x := range cols {
		cols[x] /= float64(h)
	}
	return rows, cols
}

// MAD returns the mean absolute difference between two equally sized planes.
func MAD(a, b []uint8) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		sum += float64(d)
	}
	return sum / float64(len(a))
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
