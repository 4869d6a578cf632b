package preprocess

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// otsuThreshold binarizes a grayscale image using Otsu's method:
// the threshold maximizing between-class variance of the histogram.
func otsuThreshold(src *image.NRGBA) *image.Gray {
	gray := toGray(src)
	b := gray.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return gray
	}

	var hist [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var sumB, wB float64
	var maxVar float64
	threshold := 127

	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])

		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > maxVar {
			maxVar = between
			threshold = t
		}
	}

	return applyThreshold(gray, func(x, y int) uint8 { return uint8(threshold) })
}

// adaptiveThreshold binarizes against a local mean computed over a
// window x window neighborhood, offset by delta. Window must be odd.
func adaptiveThreshold(src *image.NRGBA, window, delta int) *image.Gray {
	gray := toGray(src)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return gray
	}

	// Summed-area table for O(1) window means.
	integral := make([]int, (w+1)*(h+1))
	stride := w + 1
	for y := 0; y < h; y++ {
		rowSum := 0
		for x := 0; x < w; x++ {
			rowSum += int(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	half := window / 2
	return applyThreshold(gray, func(x, y int) uint8 {
		x0, y0 := x-b.Min.X, y-b.Min.Y
		x1 := clampInt(x0-half, 0, w-1)
		y1 := clampInt(y0-half, 0, h-1)
		x2 := clampInt(x0+half, 0, w-1)
		y2 := clampInt(y0+half, 0, h-1)

		count := (x2 - x1 + 1) * (y2 - y1 + 1)
		sum := integral[(y2+1)*stride+x2+1] - integral[y1*stride+x2+1] -
			integral[(y2+1)*stride+x1] + integral[y1*stride+x1]

		mean := sum / count
		t := mean - delta
		if t < 0 {
			t = 0
		}
		return uint8(t)
	})
}

func applyThreshold(gray *image.Gray, thresholdAt func(x, y int) uint8) *image.Gray {
	b := gray.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if gray.GrayAt(x, y).Y > thresholdAt(x, y) {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}

func toGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.NRGBAAt(x, y)
			// Rec. 601 luma, same weighting imaging.Grayscale uses.
			l := (299*int(c.R) + 587*int(c.G) + 114*int(c.B)) / 1000
			gray.SetGray(x, y, color.Gray{Y: uint8(l)})
		}
	}
	return gray
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// estimateSkew searches a small angle range for the rotation that
// maximizes horizontal projection variance on a downscaled binarized
// copy. Returns 0 when the page is already straight enough.
func estimateSkew(src *image.NRGBA) float64 {
	small := imaging.Resize(src, 320, 0, imaging.Box)
	bin := otsuThreshold(small)

	bestAngle, bestScore := 0.0, projectionVariance(bin)
	for angle := -5.0; angle <= 5.0; angle += 0.5 {
		if angle == 0 {
			continue
		}
		rotated := imaging.Rotate(bin, angle, color.White)
		score := projectionVariance(toGray(rotated))
		if score > bestScore {
			bestScore = score
			bestAngle = angle
		}
	}

	if bestAngle > -0.5 && bestAngle < 0.5 {
		return 0
	}
	return bestAngle
}

// projectionVariance measures how sharply dark pixels concentrate into
// rows; straight text lines produce a spiky profile.
func projectionVariance(gray *image.Gray) float64 {
	b := gray.Bounds()
	h := b.Dy()
	if h == 0 {
		return 0
	}

	rows := make([]float64, h)
	var mean float64
	for y := 0; y < h; y++ {
		count := 0
		for x := b.Min.X; x < b.Max.X; x++ {
			if gray.GrayAt(x, b.Min.Y+y).Y < 128 {
				count++
			}
		}
		rows[y] = float64(count)
		mean += rows[y]
	}
	mean /= float64(h)

	var variance float64
	for _, r := range rows {
		variance += (r - mean) * (r - mean)
	}
	return variance / float64(h)
}
