/**
 * OCR Types - Shared data structures for OCR operations
 *
 * The engine is treated as a black box: image bytes + mode in,
 * raw text + per-token confidences out.
 */

package ocr

import (
	"context"
	"time"
)

// Engine recognizes text in an image using a named segmentation mode.
// Implementations must honor ctx cancellation and deadlines.
type Engine interface {
	Recognize(ctx context.Context, image []byte, mode Mode) (*Result, error)
	Close() error
}

// Mode is one OCR configuration. Priority is a static rank used only for
// tie-breaking between passes (lower = expected more reliable).
type Mode struct {
	Name     string
	Priority int
}

// Result represents the output of one OCR invocation
type Result struct {
	Text     string
	Tokens   []Token
	Mode     string
	Duration time.Duration
}

// Token is a single recognized word with its confidence and location.
// Start/End are byte offsets into Result.Text, or -1 when the word could
// not be located in the raw text.
type Token struct {
	Text        string
	Confidence  float64
	Start       int
	End         int
	BoundingBox BoundingBox
}

// BoundingBox represents coordinates of a region
type BoundingBox struct {
	X      int
	Y      int
	Width  int
	Height int
}

// DefaultModes is the ordered mode set, most reliable first.
// The page-segmentation choices mirror typical machine-readable
// document layouts: full auto, single column, uniform block,
// single line, sparse text.
func DefaultModes() []Mode {
	return []Mode{
		{Name: "standard", Priority: 0},
		{Name: "single_column", Priority: 1},
		{Name: "uniform_block", Priority: 2},
		{Name: "single_line", Priority: 3},
		{Name: "sparse_text", Priority: 4},
	}
}

// SelectModes filters DefaultModes by name, preserving the default order.
// Unknown names are ignored.
func SelectModes(names []string) []Mode {
	enabled := make(map[string]bool, len(names))
	for _, n := range names {
		enabled[n] = true
	}

	var modes []Mode
	for _, m := range DefaultModes() {
		if enabled[m.Name] {
			modes = append(modes, m)
		}
	}
	return modes
}
