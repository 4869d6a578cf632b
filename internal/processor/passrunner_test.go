package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	verrors "github.com/veridoc/idverify-worker/internal/errors"
	"github.com/veridoc/idverify-worker/internal/ocr"
	"github.com/veridoc/idverify-worker/internal/preprocess"
)

type fakeOCREngine struct {
	recognize func(ctx context.Context, image []byte, mode ocr.Mode) (*ocr.Result, error)
}

func (f *fakeOCREngine) Recognize(ctx context.Context, image []byte, mode ocr.Mode) (*ocr.Result, error) {
	return f.recognize(ctx, image, mode)
}

func (f *fakeOCREngine) Close() error { return nil }

func testVariants() []preprocess.Variant {
	return []preprocess.Variant{
		{Name: "grayscale", Data: []byte("v0"), Priority: 0},
		{Name: "otsu", Data: []byte("v1"), Priority: 4},
	}
}

func testModes() []ocr.Mode {
	return []ocr.Mode{
		{Name: "standard", Priority: 0},
		{Name: "single_line", Priority: 3},
	}
}

func TestRunPassesShapeAndOrder(t *testing.T) {
	engine := &fakeOCREngine{
		recognize: func(ctx context.Context, image []byte, mode ocr.Mode) (*ocr.Result, error) {
			return &ocr.Result{Text: string(image) + "_" + mode.Name, Mode: mode.Name}, nil
		},
	}

	variants := testVariants()
	modes := testModes()
	passes := RunPasses(context.Background(), "job-1", engine, variants, modes, PassRunnerConfig{Workers: 4})

	if len(passes) != len(variants)*len(modes) {
		t.Fatalf("got %d passes, want %d", len(passes), len(variants)*len(modes))
	}

	// Slot order is (variant, mode) regardless of completion order.
	wantOrder := []struct {
		variant  string
		mode     string
		priority int
	}{
		{"grayscale", "standard", 0},
		{"grayscale", "single_line", 3},
		{"otsu", "standard", 400},
		{"otsu", "single_line", 403},
	}
	for i, want := range wantOrder {
		p := passes[i]
		if p.Variant != want.variant || p.Mode != want.mode {
			t.Errorf("pass %d: got %s_%s, want %s_%s", i, p.Variant, p.Mode, want.variant, want.mode)
		}
		if p.Priority != want.priority {
			t.Errorf("pass %d: priority = %d, want %d", i, p.Priority, want.priority)
		}
		if !p.Usable() {
			t.Errorf("pass %d should be usable, err=%v", i, p.Err)
		}
	}
}

func TestRunPassesPartialFailure(t *testing.T) {
	passErr := errors.New("segmentation produced no blocks")
	engine := &fakeOCREngine{
		recognize: func(ctx context.Context, image []byte, mode ocr.Mode) (*ocr.Result, error) {
			if mode.Name == "single_line" {
				return nil, passErr
			}
			return &ocr.Result{Text: "PLACEHOLDER", Mode: mode.Name}, nil
		},
	}

	passes := RunPasses(context.Background(), "job-2", engine, testVariants(), testModes(), PassRunnerConfig{Workers: 2})

	usable, failed := 0, 0
	for _, p := range passes {
		if p.Usable() {
			usable++
		} else if !errors.Is(p.Err, passErr) {
			t.Errorf("pass %s_%s: err = %v, want %v", p.Variant, p.Mode, p.Err, passErr)
		} else {
			failed++
		}
	}
	if usable != 2 || failed != 2 {
		t.Fatalf("usable=%d failed=%d, want 2/2", usable, failed)
	}
}

func TestRunPassesCancelledContext(t *testing.T) {
	engine := &fakeOCREngine{
		recognize: func(ctx context.Context, image []byte, mode ocr.Mode) (*ocr.Result, error) {
			t.Error("engine should not be invoked after cancellation")
			return nil, ctx.Err()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	passes := RunPasses(ctx, "job-3", engine, testVariants(), testModes(), PassRunnerConfig{Workers: 1})
	if len(passes) != 4 {
		t.Fatalf("got %d passes, want 4", len(passes))
	}
	for _, p := range passes {
		if p.Usable() {
			t.Errorf("pass %s_%s usable after cancellation", p.Variant, p.Mode)
		}
	}
}

func TestRunPassesPerPassTimeout(t *testing.T) {
	engine := &fakeOCREngine{
		recognize: func(ctx context.Context, image []byte, mode ocr.Mode) (*ocr.Result, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return &ocr.Result{Text: "too late"}, nil
			}
		},
	}

	passes := RunPasses(context.Background(), "job-4", engine, testVariants()[:1], testModes()[:1], PassRunnerConfig{
		Workers:     1,
		PassTimeout: 10 * time.Millisecond,
	})

	if len(passes) != 1 {
		t.Fatalf("got %d passes, want 1", len(passes))
	}
	if !errors.Is(passes[0].Err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", passes[0].Err)
	}
	if !verrors.HasCode(passes[0].Err, verrors.ErrorPassTimeout) {
		t.Errorf("err = %v, want PASS_TIMEOUT code", passes[0].Err)
	}
}

func TestRunPassesNeverReturnsVerificationErrorForSinglePass(t *testing.T) {
	// A single failed pass is recorded locally; only the caller decides
	// whether the batch as a whole is unusable.
	engine := &fakeOCREngine{
		recognize: func(ctx context.Context, image []byte, mode ocr.Mode) (*ocr.Result, error) {
			return nil, errors.New("engine crashed")
		},
	}

	passes := RunPasses(context.Background(), "job-5", engine, testVariants(), testModes(), PassRunnerConfig{Workers: 2})
	for _, p := range passes {
		if verrors.HasCode(p.Err, verrors.ErrorNoUsablePass) {
			t.Errorf("pass %s_%s carries a batch-level code", p.Variant, p.Mode)
		}
	}
}
