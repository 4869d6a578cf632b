package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	verrors "github.com/veridoc/idverify-worker/internal/errors"
)

func sourceImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 80, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			// Diagonal gradient with a dark band, enough structure for
			// the thresholding variants to produce both classes.
			v := uint8((x*3 + y*2) % 256)
			if y > 20 && y < 30 {
				v = 10
			}
			img.Set(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestGenerateAllVariants(t *testing.T) {
	variants, err := Generate(sourceImage(t), Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := Names()
	if len(variants) != len(want) {
		t.Fatalf("got %d variants, want %d", len(variants), len(want))
	}
	for i, v := range variants {
		if v.Name != want[i] {
			t.Errorf("variant %d: name = %s, want %s", i, v.Name, want[i])
		}
		if v.Priority != i {
			t.Errorf("variant %s: priority = %d, want %d", v.Name, v.Priority, i)
		}
		if len(v.Data) == 0 {
			t.Errorf("variant %s: empty data", v.Name)
		}
		if _, err := png.Decode(bytes.NewReader(v.Data)); err != nil {
			t.Errorf("variant %s: output not decodable PNG: %v", v.Name, err)
		}
	}
}

func TestGenerateEnabledSubset(t *testing.T) {
	variants, err := Generate(sourceImage(t), Options{Enabled: []string{"otsu", "grayscale"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(variants) != 2 {
		t.Fatalf("got %d variants, want 2", len(variants))
	}
	// Canonical order holds regardless of the order names were given in.
	if variants[0].Name != "grayscale" || variants[1].Name != "otsu" {
		t.Errorf("got order %s, %s; want grayscale, otsu", variants[0].Name, variants[1].Name)
	}
	if variants[1].Priority != 4 {
		t.Errorf("otsu priority = %d, want canonical rank 4", variants[1].Priority)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	src := sourceImage(t)

	first, err := Generate(src, Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := Generate(src, Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("variant count changed between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !bytes.Equal(first[i].Data, second[i].Data) {
			t.Errorf("variant %s: bytes differ between identical inputs", first[i].Name)
		}
	}
}

func TestGenerateDecodeFailure(t *testing.T) {
	variants, err := Generate([]byte("definitely not an image"), Options{})
	if variants != nil {
		t.Error("no variants may be returned on decode failure")
	}
	if !verrors.HasCode(err, verrors.ErrorDecodeFailed) {
		t.Fatalf("err = %v, want DECODE_FAILED", err)
	}
}

func TestOtsuThresholdBinary(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if x < 8 {
				img.Set(x, y, color.Gray{Y: 30})
			} else {
				img.Set(x, y, color.Gray{Y: 220})
			}
		}
	}

	out := otsuThreshold(img)
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(out.At(x, y)).(color.Gray)
			if g.Y != 0 && g.Y != 255 {
				t.Fatalf("pixel (%d,%d) = %d, want binary output", x, y, g.Y)
			}
		}
	}
}
