/**
 * Queue Consumer for IDVerify Worker
 *
 * Consumes verification jobs from BullMQ/Redis queue.
 * Uses Asynq (Go BullMQ-compatible library) for queue management.
 */

package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/veridoc/idverify-worker/internal/errors"
	"github.com/veridoc/idverify-worker/internal/processor"
)

// Task types routed by the consumer. TaskExtractDocument runs
// extraction only; TaskVerifyIdentity adds the selfie comparison.
const (
	TaskExtractDocument = "extract-document"
	TaskVerifyIdentity  = "verify-identity"
)

// JobData represents the structure of job data from BullMQ
type JobData struct {
	JobID          string                 `json:"jobId"`
	UserID         string                 `json:"userId"`
	DocumentBuffer []byte                 `json:"documentBuffer,omitempty"`
	SelfieBuffer   []byte                 `json:"selfieBuffer,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Consumer handles job consumption from Redis queue
type Consumer struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor processor.VerificationProcessorInterface
	config    *ConsumerConfig
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.VerificationProcessorInterface
	ProcessingTimeout int64 // Processing timeout in milliseconds (default: 120000)
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff: 5s, 10s, 20s, capped at 60s
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, error=%v", task.Type(), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client:    client,
		server:    server,
		mux:       mux,
		processor: cfg.Processor,
		config:    cfg,
	}

	mux.HandleFunc(TaskExtractDocument, consumer.handleExtractDocument)
	mux.HandleFunc(TaskVerifyIdentity, consumer.handleVerifyIdentity)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			log.Printf("Queue consumer error: %v", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	log.Printf("Stopping queue consumer...")

	c.server.Shutdown()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	log.Printf("Queue consumer stopped")
	return nil
}

// handleExtractDocument processes an extraction-only job
func (c *Consumer) handleExtractDocument(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var jobData JobData
	if err := json.Unmarshal(task.Payload(), &jobData); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	log.Printf("[Job %s] Extracting document: size=%d bytes, user=%s",
		jobData.JobID, len(jobData.DocumentBuffer), jobData.UserID)

	if err := c.processor.UpdateJobStatus(ctx, jobData.JobID, "processing", nil); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to processing: %v", jobData.JobID, err)
	}

	processCtx, cancel := c.processingContext(ctx)
	defer cancel()

	result, err := c.processor.ProcessExtraction(processCtx, &processor.ExtractionRequest{
		JobID:         jobData.JobID,
		DocumentImage: jobData.DocumentBuffer,
		Metadata:      jobData.Metadata,
	})

	duration := time.Since(startTime)

	if err != nil {
		return c.failJob(ctx, jobData.JobID, duration, err)
	}

	log.Printf("[Job %s] Extraction completed in %v: %s, score=%.1f",
		jobData.JobID, duration, result.Summary, result.ExtractionScore)

	if err := c.processor.UpdateJobStatus(ctx, jobData.JobID, "completed", map[string]interface{}{
		"extractionScore":  result.ExtractionScore,
		"fieldsExtracted":  result.FieldsExtracted,
		"fieldsTotal":      result.FieldsTotal,
		"processingTimeMs": duration.Milliseconds(),
	}); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to completed: %v", jobData.JobID, err)
	}

	return nil
}

// handleVerifyIdentity processes a full document + selfie verification
func (c *Consumer) handleVerifyIdentity(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var jobData JobData
	if err := json.Unmarshal(task.Payload(), &jobData); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	log.Printf("[Job %s] Verifying identity: document=%d bytes, selfie=%d bytes, user=%s",
		jobData.JobID, len(jobData.DocumentBuffer), len(jobData.SelfieBuffer), jobData.UserID)

	if err := c.processor.UpdateJobStatus(ctx, jobData.JobID, "processing", nil); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to processing: %v", jobData.JobID, err)
	}

	processCtx, cancel := c.processingContext(ctx)
	defer cancel()

	result, err := c.processor.ProcessVerification(processCtx, &processor.VerificationRequest{
		JobID:         jobData.JobID,
		DocumentImage: jobData.DocumentBuffer,
		SelfieImage:   jobData.SelfieBuffer,
		Metadata:      jobData.Metadata,
	})

	duration := time.Since(startTime)

	if err != nil {
		return c.failJob(ctx, jobData.JobID, duration, err)
	}

	log.Printf("[Job %s] Verification completed in %v: verdict=%s, rule=%s",
		jobData.JobID, duration, result.Decision.Verdict, result.Decision.Rule)

	if err := c.processor.UpdateJobStatus(ctx, jobData.JobID, "completed", map[string]interface{}{
		"verdict":          string(result.Decision.Verdict),
		"extractionScore":  result.Decision.Scores.ExtractionScore,
		"similarity":       result.Decision.Scores.Similarity,
		"livenessScore":    result.Decision.Scores.LivenessScore,
		"processingTimeMs": duration.Milliseconds(),
	}); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to completed: %v", jobData.JobID, err)
	}

	return nil
}

// processingContext applies the configured per-job timeout.
func (c *Consumer) processingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := 120 * time.Second
	if c.config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}
	return context.WithTimeout(ctx, timeout)
}

// failJob records a failed job and returns the wrapped error so asynq
// retries it. Structured errors carry their code into the job record.
func (c *Consumer) failJob(ctx context.Context, jobID string, duration time.Duration, err error) error {
	log.Printf("[Job %s] Processing failed after %v: %v", jobID, duration, err)

	metadata := map[string]interface{}{
		"error":            err.Error(),
		"processingTimeMs": duration.Milliseconds(),
	}

	var ve *errors.VerificationError
	if stderrors.As(err, &ve) {
		metadata["errorCode"] = string(ve.Code)
	}

	if updateErr := c.processor.UpdateJobStatus(ctx, jobID, "failed", metadata); updateErr != nil {
		log.Printf("[Job %s] Warning: Failed to update status to failed: %v", jobID, updateErr)
	}

	return fmt.Errorf("verification processing failed: %w", err)
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
		"redisURL":    c.config.RedisURL,
	}
}
