/**
 * IDVerify Worker - Main Entry Point
 *
 * Go worker for passport/ID extraction and identity verification.
 *
 * Architecture:
 * - BullMQ/Redis-backed job queue consumer
 * - Multi-pass extraction pipeline (image variants x OCR modes) with
 *   cross-pass fusion voting per field
 * - Face similarity + liveness via InsightFace sidecar
 * - Tri-state verdict engine (VERIFIED / REJECTED / NEEDS_REVIEW)
 * - PostgreSQL persistence, Qdrant face-embedding store for audit and
 *   duplicate detection
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/veridoc/idverify-worker/internal/config"
	"github.com/veridoc/idverify-worker/internal/extraction"
	"github.com/veridoc/idverify-worker/internal/face"
	"github.com/veridoc/idverify-worker/internal/ocr"
	"github.com/veridoc/idverify-worker/internal/processor"
	"github.com/veridoc/idverify-worker/internal/queue"
	"github.com/veridoc/idverify-worker/internal/storage"
	"github.com/veridoc/idverify-worker/internal/verify"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(".env.idverify"); err != nil {
		log.Printf("Warning: .env.idverify not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("IDVerify Worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Qdrant=%s, FaceService=%s, Workers=%d",
		cfg.RedisURL, cfg.QdrantURL, cfg.FaceServiceURL, cfg.WorkerConcurrency)

	// Initialize unified storage manager (PostgreSQL + Qdrant)
	log.Printf("Connecting to storage (PostgreSQL + Qdrant)...")
	storageManager, err := storage.NewStorageManager(
		cfg.DatabaseURL,
		cfg.QdrantURL,
		cfg.QdrantCollection,
	)
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	defer storageManager.Close()
	log.Printf("Storage manager initialized (PostgreSQL + Qdrant)")

	// Initialize OCR engine
	ocrEngine, err := ocr.NewTesseractEngine(&ocr.TesseractConfig{
		TessdataDir: cfg.TessdataDir,
	})
	if err != nil {
		log.Fatalf("Failed to initialize OCR engine: %v", err)
	}
	defer ocrEngine.Close()
	log.Printf("Tesseract OCR engine initialized (modes: %v)", cfg.EnabledModes)

	// Initialize face sidecar client
	faceClient := face.NewClient(cfg.FaceServiceURL)
	healthCtx, healthCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := faceClient.HealthCheck(healthCtx); err != nil {
		log.Printf("WARNING: Face service health check failed: %v. Verification jobs will fail until it recovers.", err)
	} else {
		log.Printf("Face service connection verified: %s", cfg.FaceServiceURL)
	}
	healthCancel()

	// Initialize verification processor
	proc, err := processor.NewVerificationProcessor(&processor.ProcessorConfig{
		StorageManager:  storageManager,
		OCREngine:       ocrEngine,
		FaceEngine:      faceClient,
		Rules:           extraction.DefaultRules(),
		Weights:         extraction.DefaultWeights(),
		Thresholds:      thresholdsFromConfig(cfg),
		EnabledModes:    cfg.EnabledModes,
		EnabledVariants: cfg.EnabledVariants,
		PassWorkers:     cfg.PassWorkers,
		PassTimeout:     time.Duration(cfg.PassTimeoutMs) * time.Millisecond,
		RequestTimeout:  time.Duration(cfg.RequestTimeoutMs) * time.Millisecond,
		MaxFileSize:     cfg.MaxFileSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize verification processor: %v", err)
	}
	log.Printf("Verification processor initialized")

	// Initialize queue consumer
	log.Printf("Connecting to Redis queue (driver=%s)...", cfg.QueueDriver)
	var stopConsumer func() error
	if cfg.QueueDriver == "asynq" {
		asynqConsumer, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         "idverify:jobs",
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.RequestTimeoutMs),
		})
		if err != nil {
			log.Fatalf("Failed to initialize queue consumer: %v", err)
		}
		if err := asynqConsumer.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start queue consumer: %v", err)
		}
		stopConsumer = func() error { return asynqConsumer.Stop(context.Background()) }
	} else {
		redisConsumer, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         "idverify:jobs",
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.RequestTimeoutMs),
		})
		if err != nil {
			log.Fatalf("Failed to initialize queue consumer: %v", err)
		}
		if err := redisConsumer.Start(); err != nil {
			log.Fatalf("Failed to start queue consumer: %v", err)
		}
		stopConsumer = redisConsumer.Stop
	}
	log.Printf("Queue consumer initialized with concurrency=%d", cfg.WorkerConcurrency)

	// Print startup summary
	log.Printf("===========================================")
	log.Printf("IDVerify Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: idverify:jobs")
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("OCR modes: %v", cfg.EnabledModes)
	log.Printf("Preprocess variants: %v", cfg.EnabledVariants)
	log.Printf("Thresholds: similarity=%.2f, liveness=%.2f (enabled=%v), ocr_min=%.0f",
		cfg.SimThreshold, cfg.LivenessThreshold, cfg.LivenessEnabled, cfg.OCRMinScore)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	log.Printf("Stopping queue consumer...")
	if err := stopConsumer(); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	} else {
		log.Printf("Queue consumer stopped successfully")
	}

	log.Printf("Closing storage manager...")
	if err := storageManager.Close(); err != nil {
		log.Printf("Error closing storage manager: %v", err)
	} else {
		log.Printf("Storage manager closed")
	}

	log.Printf("Shutdown complete")
}

func thresholdsFromConfig(cfg *config.Config) verify.Thresholds {
	return verify.Thresholds{
		SimThreshold:      cfg.SimThreshold,
		LivenessThreshold: cfg.LivenessThreshold,
		LivenessEnabled:   cfg.LivenessEnabled,
		OCRMinScore:       cfg.OCRMinScore,
	}
}

// healthCheck is used by the container healthcheck entrypoint
func healthCheck(db *storage.PostgresClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
