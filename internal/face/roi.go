package face

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

// DocumentROI crops the left band of a passport data page, where the
// portrait photo sits, before detection. Cropping first keeps the MRZ
// text and guilloche background from producing spurious detections.
// Decode failures return the original bytes so detection still gets a
// chance at the full frame.
func DocumentROI(imageBytes []byte) []byte {
	img, err := imaging.Decode(bytes.NewReader(imageBytes), imaging.AutoOrientation(true))
	if err != nil {
		return imageBytes
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	roi := imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y, b.Min.X+int(float64(w)*0.45), b.Min.Y+h))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, roi, imaging.PNG); err != nil {
		return imageBytes
	}
	return buf.Bytes()
}
