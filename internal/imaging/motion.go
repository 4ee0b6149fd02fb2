package imaging

import "math"

// MotionVector is one block's estimated displacement in pixels.
type MotionVector struct {
	DX, DY float64
}

// Magnitude returns the vector length.
func (v MotionVector) Magnitude() float64 { return math.Hypot(v.DX, v.DY) }

// BlockMotion estimates per-block displacement between two gray planes with
// an exhaustive search of +-searchRange pixels. Blocks with almost no
// texture are skipped, mirroring feature-based trackers that only follow
// corners. Returns the kept vectors.
func BlockMotion(prev, cur []uint8, w, h, blockSize, searchRange int) []MotionVector {
	if blockSize <= 0 || len(prev) != w*h || len(cur) != w*h {
		return nil
	}
	var vectors []MotionVector
	for by := 0; by+blockSize <= h; by += blockSize {
		for bx := 0; bx+blockSize <= w; bx += blockSize {
			if blockStd(prev, w, bx, by, blockSize) < 4 {
				continue
			}
			best := math.Inf(1)
			bestDX, bestDY := 0, 0
			for dy := -searchRange; dy <= searchRange; dy++ {
				ny := by + dy
				if ny < 0 || ny+blockSize > h {
					continue
				}
				for dx := -searchRange; dx <= searchRange; dx++ {
					nx := bx + dx
					if nx < 0 || nx+blockSize > w {
						continue
					}
					cost := blockSAD(prev, cur, w, bx, by, nx, ny, blockSize, best)
					if cost < best {
						best = cost
						bestDX, bestDY = dx, dy
					}
				}
			}
			vectors = append(vectors, MotionVector{DX: float64(bestDX), DY: float64(bestDY)})
		}
	}
	return vectors
}

func blockStd(pix []uint8, w, x0, y0, size int) float64 {
	var sum, sq float64
	for y := y0; y < y0+size; y++ {
		base := y * w
		for x := x0; x < x0+size; x++ {
			v := float64(pix[base+x])
			sum += v
			sq += v * v
		}
	}
	n := float64(size * size)
	mean := sum / n
	variance := sq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// blockSAD computes the sum of absolute differences between a block in prev
// at (x0,y0) and a block in cur at (x1,y1), aborting early past bestSoFar.
func blockSAD(prev, cur []uint8, w, x0, y0, x1, y1, size int, bestSoFar float64) float64 {
	var sad float64
	for y := 0; y < size; y++ {
		p := (y0+y)*w + x0
		c := (y1+y)*w + x1
		for x := 0; x < size; x++ {
			d := int(prev[p+x]) - int(cur[c+x])
			if d < 0 {
				d = -d
			}
			sad += float64(d)
		}
		if sad >= bestSoFar {
			return math.Inf(1)
		}
	}
	return sad
}

// MeanMotionMagnitude summarizes a vector field; returns mean magnitude and
// the magnitude variance.
func MeanMotionMagnitude(vectors []MotionVector) (mean, variance float64) {
	if len(vectors) == 0 {
		return 0, 0
	}
	mags := make([]float64, len(vectors))
	for i, v := range vectors {
		mags[i] = v.Magnitude()
	}
	m, s := MeanStdF(mags)
	return m, s * s
}
