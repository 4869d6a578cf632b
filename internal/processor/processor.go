/**
 * Verification Processor for IDVerify Worker
 *
 * Orchestrates the two pipelines behind every job:
 * - Extraction: variants -> OCR passes -> candidates -> fusion
 * - Face: document face + live selfie -> similarity + liveness
 *
 * The pipelines share no data until the decision engine joins their
 * scores, so a combined verification request runs them concurrently.
 */

package processor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	verrors "github.com/veridoc/idverify-worker/internal/errors"
	"github.com/veridoc/idverify-worker/internal/extraction"
	"github.com/veridoc/idverify-worker/internal/face"
	"github.com/veridoc/idverify-worker/internal/ocr"
	"github.com/veridoc/idverify-worker/internal/preprocess"
	"github.com/veridoc/idverify-worker/internal/storage"
	"github.com/veridoc/idverify-worker/internal/verify"
)

// VerificationProcessorInterface defines the interface for job processing
type VerificationProcessorInterface interface {
	ProcessExtraction(ctx context.Context, req *ExtractionRequest) (*extraction.ExtractionResult, error)
	ProcessVerification(ctx context.Context, req *VerificationRequest) (*VerificationResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	StorageManager  *storage.StorageManager
	OCREngine       ocr.Engine
	FaceEngine      face.Engine
	Rules           *extraction.Rules
	Weights         extraction.Weights
	Thresholds      verify.Thresholds
	EnabledModes    []string
	EnabledVariants []string
	PassWorkers     int
	PassTimeout     time.Duration
	RequestTimeout  time.Duration
	MaxFileSize     int64
}

// ExtractionRequest represents a document extraction request
type ExtractionRequest struct {
	JobID         string
	DocumentImage []byte
	Metadata      map[string]interface{}
}

// VerificationRequest adds the live selfie to an extraction request
type VerificationRequest struct {
	JobID         string
	DocumentImage []byte
	SelfieImage   []byte
	Metadata      map[string]interface{}
}

// VerificationResult is the full outcome returned to the queue layer
type VerificationResult struct {
	JobID            string                      `json:"jobId"`
	Decision         verify.Decision             `json:"decision"`
	Extraction       extraction.ExtractionResult `json:"extraction"`
	DocumentFace     *face.Face                  `json:"documentFace,omitempty"`
	Liveness         *face.LivenessResult        `json:"liveness,omitempty"`
	ProcessingTimeMs int64                       `json:"processingTimeMs"`
}

// VerificationProcessor handles extraction and verification jobs
type VerificationProcessor struct {
	config  *ProcessorConfig
	storage *storage.StorageManager
	modes   []ocr.Mode
}

// NewVerificationProcessor creates a new processor
func NewVerificationProcessor(cfg *ProcessorConfig) (*VerificationProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if cfg.OCREngine == nil {
		return nil, fmt.Errorf("OCR engine is required")
	}

	if cfg.FaceEngine == nil {
		return nil, fmt.Errorf("face engine is required")
	}

	if cfg.Rules == nil {
		cfg.Rules = extraction.DefaultRules()
	}

	modes := ocr.SelectModes(cfg.EnabledModes)
	if len(modes) == 0 {
		modes = ocr.DefaultModes()
	}

	return &VerificationProcessor{
		config:  cfg,
		storage: cfg.StorageManager,
		modes:   modes,
	}, nil
}

// ProcessExtraction runs the full extraction pipeline for one document
// image. Decode failures fail fast; single-pass failures degrade the
// candidate pool; a request where every pass failed surfaces
// NO_USABLE_PASS.
func (p *VerificationProcessor) ProcessExtraction(ctx context.Context, req *ExtractionRequest) (*extraction.ExtractionResult, error) {
	start := time.Now()

	if p.config.MaxFileSize > 0 && int64(len(req.DocumentImage)) > p.config.MaxFileSize {
		return nil, verrors.NewUnsupportedFormatError(req.JobID, int64(len(req.DocumentImage)), p.config.MaxFileSize)
	}

	if p.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.RequestTimeout)
		defer cancel()
	}

	log.Printf("[Job %s] Step 1: Generating preprocessing variants", req.JobID)
	variants, err := preprocess.Generate(req.DocumentImage, preprocess.Options{Enabled: p.config.EnabledVariants})
	if err != nil {
		return nil, err
	}
	log.Printf("[Job %s] Generated %d variants", req.JobID, len(variants))

	log.Printf("[Job %s] Step 2: Running %d OCR passes (%d variants x %d modes)",
		req.JobID, len(variants)*len(p.modes), len(variants), len(p.modes))
	passes := RunPasses(ctx, req.JobID, p.config.OCREngine, variants, p.modes, PassRunnerConfig{
		Workers:     p.config.PassWorkers,
		PassTimeout: p.config.PassTimeout,
	})

	if err := ctx.Err(); err != nil {
		return nil, verrors.NewRequestTimeoutError(req.JobID, time.Since(start), err)
	}

	usable := 0
	for _, pass := range passes {
		if pass.Usable() {
			usable++
		}
	}
	if usable == 0 {
		return nil, verrors.NewNoUsablePassError(req.JobID, len(passes))
	}

	log.Printf("[Job %s] Step 3: Extracting candidates from %d/%d usable passes", req.JobID, usable, len(passes))
	var candidates []extraction.FieldCandidate
	var pooledDates []string
	for _, pass := range passes {
		candidates = append(candidates, extraction.ExtractCandidates(pass, p.config.Rules, p.config.Weights)...)
		pooledDates = append(pooledDates, extraction.CollectDateCandidates(pass)...)
	}

	log.Printf("[Job %s] Step 4: Fusing %d candidates", req.JobID, len(candidates))
	result := extraction.Fuse(candidates, p.config.Weights)
	extraction.AssignDates(&result, pooledDates)

	log.Printf("[Job %s] Extraction complete: %s, score=%.1f, %v",
		req.JobID, result.Summary, result.ExtractionScore, time.Since(start))

	return &result, nil
}

// ProcessVerification runs extraction and face analysis concurrently
// and joins their scores at the decision engine. The join is the only
// synchronization point between the two sub-pipelines.
func (p *VerificationProcessor) ProcessVerification(ctx context.Context, req *VerificationRequest) (*VerificationResult, error) {
	start := time.Now()

	if p.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.RequestTimeout)
		defer cancel()
	}

	log.Printf("[Job %s] Starting verification pipeline", req.JobID)

	var (
		wg         sync.WaitGroup
		extResult  *extraction.ExtractionResult
		extErr     error
		faceSignal *faceOutcome
		faceErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		extResult, extErr = p.ProcessExtraction(ctx, &ExtractionRequest{
			JobID:         req.JobID,
			DocumentImage: req.DocumentImage,
			Metadata:      req.Metadata,
		})
	}()
	go func() {
		defer wg.Done()
		faceSignal, faceErr = p.runFacePipeline(ctx, req.JobID, req.DocumentImage, req.SelfieImage)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, verrors.NewRequestTimeoutError(req.JobID, time.Since(start), err)
	}
	if extErr != nil {
		return nil, extErr
	}
	if faceErr != nil {
		return nil, faceErr
	}

	scores := verify.Scores{
		Similarity:      faceSignal.similarity,
		LivenessScore:   faceSignal.livenessScore,
		ExtractionScore: extResult.ExtractionScore,
	}
	decision := verify.Decide(scores, p.config.Thresholds)

	log.Printf("[Job %s] Verdict: %s (rule=%s, similarity=%.3f, liveness=%.3f, extraction=%.1f)",
		req.JobID, decision.Verdict, decision.Rule,
		scores.Similarity, scores.LivenessScore, scores.ExtractionScore)

	result := &VerificationResult{
		JobID:            req.JobID,
		Decision:         decision,
		Extraction:       *extResult,
		DocumentFace:     faceSignal.documentFace,
		Liveness:         faceSignal.liveness,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}

	if p.storage != nil {
		if err := p.storeResult(ctx, req.JobID, result, faceSignal); err != nil {
			// Persistence failures do not change the verdict; the
			// result still flows back to the caller.
			log.Printf("[Job %s] WARNING: failed to persist result: %v", req.JobID, err)
		}
	}

	return result, nil
}

// faceOutcome bundles everything the face sub-pipeline produces.
type faceOutcome struct {
	documentFace  *face.Face
	selfieFace    *face.Face
	liveness      *face.LivenessResult
	similarity    float64
	livenessScore float64
}

// runFacePipeline detects the document portrait and the selfie face,
// compares their embeddings and runs liveness on the selfie. A missing
// face on either image is surfaced as NO_FACE_DETECTED, never as a low
// similarity.
func (p *VerificationProcessor) runFacePipeline(ctx context.Context, jobID string, docImage, selfieImage []byte) (*faceOutcome, error) {
	docROI := face.DocumentROI(docImage)

	docFace, err := p.config.FaceEngine.DetectAndEmbed(ctx, docROI, "document")
	if err != nil {
		if verrors.HasCode(err, verrors.ErrorNoFaceDetected) {
			// Retry on the full frame before giving up; some layouts
			// put the portrait outside the usual band.
			docFace, err = p.config.FaceEngine.DetectAndEmbed(ctx, docImage, "document")
		}
		if err != nil {
			return nil, err
		}
	}
	log.Printf("[Job %s] Document face detected (detScore=%.3f)", jobID, docFace.DetScore)

	selfieFace, err := p.config.FaceEngine.DetectAndEmbed(ctx, selfieImage, "live")
	if err != nil {
		return nil, err
	}
	log.Printf("[Job %s] Selfie face detected (detScore=%.3f)", jobID, selfieFace.DetScore)

	outcome := &faceOutcome{
		documentFace: docFace,
		selfieFace:   selfieFace,
		similarity:   face.CosineSimilarity(docFace.Embedding, selfieFace.Embedding),
	}

	if p.config.Thresholds.LivenessEnabled {
		liveness, err := p.config.FaceEngine.Liveness(ctx, selfieImage)
		if err != nil {
			return nil, err
		}
		outcome.liveness = liveness
		outcome.livenessScore = liveness.Score
	}

	return outcome, nil
}

func (p *VerificationProcessor) storeResult(ctx context.Context, jobID string, result *VerificationResult, fo *faceOutcome) error {
	fields := make(map[string]interface{}, len(result.Extraction.Fields))
	for _, f := range result.Extraction.Fields {
		fields[f.Field] = map[string]interface{}{
			"value":      f.Value,
			"confidence": f.Confidence,
			"method":     f.Method,
			"votes":      f.Votes,
		}
	}

	var embedding []float32
	if fo.selfieFace != nil {
		embedding = fo.selfieFace.Embedding
	}

	_, err := p.storage.StoreResult(ctx, &storage.ResultInput{
		JobID:           jobID,
		Verdict:         string(result.Decision.Verdict),
		Rule:            result.Decision.Rule,
		ExtractionScore: result.Extraction.ExtractionScore,
		Similarity:      result.Decision.Scores.Similarity,
		LivenessScore:   result.Decision.Scores.LivenessScore,
		Fields:          fields,
		FaceEmbedding:   embedding,
	})
	return err
}

// UpdateJobStatus writes a status transition to storage
func (p *VerificationProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error {
	if p.storage == nil {
		return nil
	}

	update := &storage.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Metadata: metadata,
	}

	if metadata != nil {
		if verdict, ok := metadata["verdict"].(string); ok {
			update.Verdict = verdict
		}
		if score, ok := metadata["extractionScore"].(float64); ok {
			update.ExtractionScore = score
		}
		if sim, ok := metadata["similarity"].(float64); ok {
			update.Similarity = sim
		}
		if live, ok := metadata["livenessScore"].(float64); ok {
			update.LivenessScore = live
		}
		if processingTime, ok := metadata["processingTimeMs"].(int64); ok {
			update.ProcessingTimeMs = processingTime
		}
		if errorMsg, ok := metadata["error"].(string); ok {
			update.ErrorCode = "PROCESSING_ERROR"
			update.ErrorMessage = errorMsg
		}
		if errorCode, ok := metadata["errorCode"].(string); ok {
			update.ErrorCode = errorCode
		}
	}

	return p.storage.UpdateJobStatus(ctx, update)
}
