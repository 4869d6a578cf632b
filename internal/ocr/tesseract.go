/**
 * Tesseract OCR engine
 *
 * Wraps gosseract with the page-segmentation modes the multi-pass
 * pipeline fans out over. One client per invocation: gosseract clients
 * are not safe for concurrent use and passes run in parallel.
 */

package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	verrors "github.com/veridoc/idverify-worker/internal/errors"
)

// TesseractEngine performs OCR using a local Tesseract installation
type TesseractEngine struct {
	tessdataDir string
	languages   []string
}

// TesseractConfig holds Tesseract engine configuration
type TesseractConfig struct {
	TessdataDir string
	Languages   []string
}

// pageSegModes maps mode names to Tesseract PSM values
var pageSegModes = map[string]gosseract.PageSegMode{
	"standard":      gosseract.PSM_AUTO,
	"single_column": gosseract.PSM_SINGLE_COLUMN,
	"uniform_block": gosseract.PSM_SINGLE_BLOCK,
	"single_line":   gosseract.PSM_SINGLE_LINE,
	"sparse_text":   gosseract.PSM_SPARSE_TEXT,
}

// NewTesseractEngine creates a new Tesseract engine instance
func NewTesseractEngine(cfg *TesseractConfig) (*TesseractEngine, error) {
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"eng"}
	}

	return &TesseractEngine{
		tessdataDir: cfg.TessdataDir,
		languages:   langs,
	}, nil
}

// Recognize performs one OCR pass on the given image bytes.
// The gosseract call itself cannot be interrupted, so it runs in a
// goroutine and the result is abandoned when ctx expires.
func (t *TesseractEngine) Recognize(ctx context.Context, image []byte, mode Mode) (*Result, error) {
	psm, ok := pageSegModes[mode.Name]
	if !ok {
		return nil, fmt.Errorf("unknown OCR mode: %s", mode.Name)
	}

	type recognizeOutcome struct {
		result *Result
		err    error
	}

	done := make(chan recognizeOutcome, 1)
	go func() {
		res, err := t.recognize(image, mode, psm)
		done <- recognizeOutcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, verrors.NewEngineTimeoutError(mode.Name, ctx.Err())
	}
}

func (t *TesseractEngine) recognize(image []byte, mode Mode, psm gosseract.PageSegMode) (*Result, error) {
	startTime := time.Now()

	client := gosseract.NewClient()
	defer client.Close()

	if t.tessdataDir != "" {
		client.SetTessdataPrefix(t.tessdataDir)
	}
	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("failed to set languages: %w", err)
	}
	client.SetPageSegMode(psm)

	if err := client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed (mode=%s): %w", mode.Name, err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Text without word confidences is still a usable pass; the
		// extractor falls back to a fixed token confidence.
		boxes = nil
	}

	result := &Result{
		Text:     text,
		Tokens:   tokensFromBoxes(text, boxes),
		Mode:     mode.Name,
		Duration: time.Since(startTime),
	}

	return result, nil
}

// tokensFromBoxes converts gosseract word boxes to ordered tokens with
// byte offsets into the raw text. Offsets are resolved with a moving
// cursor so repeated words map to successive occurrences; unresolvable
// words get Start/End of -1.
func tokensFromBoxes(text string, boxes []gosseract.BoundingBox) []Token {
	tokens := make([]Token, 0, len(boxes))
	cursor := 0

	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}

		start, end := -1, -1
		if cursor <= len(text) {
			if idx := strings.Index(text[cursor:], word); idx >= 0 {
				start = cursor + idx
				end = start + len(word)
				cursor = end
			}
		}

		tokens = append(tokens, Token{
			Text:       word,
			Confidence: normalizeConfidence(box.Confidence),
			Start:      start,
			End:        end,
			BoundingBox: BoundingBox{
				X:      box.Box.Min.X,
				Y:      box.Box.Min.Y,
				Width:  box.Box.Dx(),
				Height: box.Box.Dy(),
			},
		})
	}

	return tokens
}

// normalizeConfidence maps Tesseract's 0-100 word confidence to [0,1].
// Values are always treated as percentages; a confidence of 0.9 means
// 0.9%, not 90%.
func normalizeConfidence(conf float64) float64 {
	conf = conf / 100
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

// Close releases engine resources
func (t *TesseractEngine) Close() error {
	return nil
}
