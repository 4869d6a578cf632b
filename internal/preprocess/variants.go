/**
 * Variant Generator
 *
 * Produces a fixed, ordered set of preprocessed image variants from one
 * input image. Each variant is an independently valid OCR input; the
 * multi-pass pipeline fans out over variants x modes. Generation is
 * deterministic for identical input bytes.
 */

package preprocess

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	verrors "github.com/veridoc/idverify-worker/internal/errors"
)

// Variant is one named preprocessing transform of the source image,
// encoded as PNG bytes. Priority is the variant's static reliability
// rank (lower = expected better OCR input), used only for tie-breaking.
type Variant struct {
	Name     string
	Data     []byte
	Priority int
}

// Options selects which variants to generate. Zero value enables all.
type Options struct {
	Enabled       []string
	UpscaleFactor int
}

// variantOrder is the canonical variant order, most reliable first.
// Region crops trail the whole-image transforms: they help recover
// fields the full-frame passes miss but read less context.
var variantOrder = []string{
	"grayscale",
	"clahe",
	"upscaled",
	"sharpened",
	"otsu",
	"adaptive",
	"deskewed",
	"region_top_right",
	"region_center",
	"region_bottom",
}

// Names returns the canonical variant order.
func Names() []string {
	out := make([]string, len(variantOrder))
	copy(out, variantOrder)
	return out
}

// Generate decodes the input image and produces the enabled variants in
// canonical order. A decode failure aborts the whole request: no
// variants are returned alongside a DECODE_FAILED error.
func Generate(imageBytes []byte, opts Options) ([]Variant, error) {
	src, err := imaging.Decode(bytes.NewReader(imageBytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, verrors.NewDecodeError("", err)
	}

	enabled := enabledSet(opts.Enabled)
	upscale := opts.UpscaleFactor
	if upscale < 2 {
		upscale = 2
	}

	gray := imaging.Grayscale(src)

	var variants []Variant
	for rank, name := range variantOrder {
		if !enabled[name] {
			continue
		}

		img := transform(name, src, gray, upscale)
		if img == nil {
			continue
		}

		data, err := encodePNG(img)
		if err != nil {
			// Encoding in-memory PNG only fails on writer errors, which
			// bytes.Buffer never produces; treat defensively as a skip.
			continue
		}

		variants = append(variants, Variant{
			Name:     name,
			Data:     data,
			Priority: rank,
		})
	}

	return variants, nil
}

func transform(name string, src image.Image, gray *image.NRGBA, upscale int) image.Image {
	switch name {
	case "grayscale":
		return imaging.AdjustContrast(gray, 10)
	case "clahe":
		// Contrast-limited enhancement approximated with a strong
		// global contrast stretch plus mild sharpening.
		return imaging.Sharpen(imaging.AdjustContrast(gray, 30), 0.8)
	case "upscaled":
		b := src.Bounds()
		up := imaging.Resize(src, b.Dx()*upscale, b.Dy()*upscale, imaging.Lanczos)
		return imaging.Grayscale(up)
	case "sharpened":
		return imaging.Sharpen(gray, 2.0)
	case "otsu":
		return otsuThreshold(gray)
	case "adaptive":
		return adaptiveThreshold(gray, 11, 2)
	case "deskewed":
		angle := estimateSkew(gray)
		if angle == 0 {
			return imaging.AdjustContrast(gray, 10)
		}
		return imaging.Rotate(gray, angle, color.White)
	case "region_top_right":
		return cropRelative(gray, 0.4, 0.0, 1.0, 0.4)
	case "region_center":
		return cropRelative(gray, 0.0, 0.2, 1.0, 0.8)
	case "region_bottom":
		return cropRelative(gray, 0.0, 0.6, 1.0, 1.0)
	}
	return nil
}

// cropRelative crops a sub-rectangle given as fractions of the bounds.
func cropRelative(img image.Image, x1, y1, x2, y2 float64) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	rect := image.Rect(
		b.Min.X+int(float64(w)*x1),
		b.Min.Y+int(float64(h)*y1),
		b.Min.X+int(float64(w)*x2),
		b.Min.Y+int(float64(h)*y2),
	)
	return imaging.Crop(img, rect)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func enabledSet(names []string) map[string]bool {
	set := make(map[string]bool, len(variantOrder))
	if len(names) == 0 {
		for _, n := range variantOrder {
			set[n] = true
		}
		return set
	}
	for _, n := range names {
		set[n] = true
	}
	return set
}
