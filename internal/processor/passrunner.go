/**
 * Pass Runner - Variant x Mode Fan-Out
 *
 * Each (variant, OCR mode) pair is an independent pass. Passes run
 * concurrently up to a configured worker limit, each under its own
 * timeout. A failed pass is recorded with its error and excluded from
 * candidate generation; it never aborts the batch. Results are written
 * into a pre-indexed slice so completion order cannot influence the
 * downstream fusion.
 */

package processor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	verrors "github.com/veridoc/idverify-worker/internal/errors"
	"github.com/veridoc/idverify-worker/internal/extraction"
	"github.com/veridoc/idverify-worker/internal/ocr"
	"github.com/veridoc/idverify-worker/internal/preprocess"
)

// PassRunnerConfig bounds the fan-out.
type PassRunnerConfig struct {
	Workers     int
	PassTimeout time.Duration
}

// RunPasses executes every variant x mode combination against the OCR
// engine. The returned slice always has len(variants) * len(modes)
// entries in deterministic (variant, mode) order, failed passes
// included with their Err set.
func RunPasses(ctx context.Context, jobID string, engine ocr.Engine, variants []preprocess.Variant, modes []ocr.Mode, cfg PassRunnerConfig) []extraction.Pass {
	type work struct {
		index   int
		variant preprocess.Variant
		mode    ocr.Mode
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	passes := make([]extraction.Pass, len(variants)*len(modes))
	jobs := make([]work, 0, len(passes))
	for vi, v := range variants {
		for mi, m := range modes {
			jobs = append(jobs, work{index: vi*len(modes) + mi, variant: v, mode: m})
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for _, job := range jobs {
		wg.Add(1)
		go func(job work) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				passes[job.index] = failedPass(job.variant, job.mode, err)
				return
			}
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				passes[job.index] = failedPass(job.variant, job.mode, ctx.Err())
				return
			}
			passes[job.index] = runOne(ctx, jobID, engine, job.variant, job.mode, cfg.PassTimeout)
		}(job)
	}
	wg.Wait()

	return passes
}

func runOne(ctx context.Context, jobID string, engine ocr.Engine, v preprocess.Variant, m ocr.Mode, timeout time.Duration) extraction.Pass {
	passCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		passCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := engine.Recognize(passCtx, v.Data, m)
	if err != nil {
		if errors.Is(passCtx.Err(), context.DeadlineExceeded) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = verrors.NewPassTimeoutError(jobID, v.Name, m.Name, err)
		}
		log.Printf("[Job %s] Pass %s_%s failed after %v: %v", jobID, v.Name, m.Name, time.Since(start), err)
		return failedPass(v, m, err)
	}

	log.Printf("[Job %s] Pass %s_%s complete: %d chars, %d tokens, %v",
		jobID, v.Name, m.Name, len(result.Text), len(result.Tokens), time.Since(start))

	return extraction.Pass{
		Variant:  v.Name,
		Mode:     m.Name,
		Text:     result.Text,
		Tokens:   result.Tokens,
		Priority: passPriority(v, m),
	}
}

func failedPass(v preprocess.Variant, m ocr.Mode, err error) extraction.Pass {
	return extraction.Pass{
		Variant:  v.Name,
		Mode:     m.Name,
		Priority: passPriority(v, m),
		Err:      err,
	}
}

// passPriority is the static tie-break rank for a pass. Variants
// dominate modes: an earlier variant always outranks a later one.
func passPriority(v preprocess.Variant, m ocr.Mode) int {
	return v.Priority*100 + m.Priority
}
