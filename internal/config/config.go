/**
 * Configuration for the identity verification worker
 *
 * Loads configuration from environment variables matching .env.idverify
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL string

	// Queue driver: "redis" for the gateway's list-based queue,
	// "asynq" for the task-based queue
	QueueDriver string

	// PostgreSQL configuration
	DatabaseURL string

	// Qdrant vector database configuration
	QdrantURL        string
	QdrantCollection string

	// Face analysis sidecar (InsightFace service)
	FaceServiceURL string

	// Tesseract configuration
	TesseractPath string
	TessdataDir   string

	// OCR pipeline configuration
	EnabledModes    []string
	EnabledVariants []string
	PassWorkers     int
	PassTimeoutMs   int

	// Decision thresholds
	SimThreshold      float64
	LivenessThreshold float64
	LivenessEnabled   bool
	OCRMinScore       float64

	// Worker configuration
	WorkerConcurrency int
	MaxFileSize       int64
	RequestTimeoutMs  int

	// Node environment
	NodeEnv string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://idverify-redis:6379"),
		QueueDriver:       getEnvOrDefault("QUEUE_DRIVER", "redis"),
		DatabaseURL:       getEnvOrThrow("DATABASE_URL"),
		QdrantURL:         getEnvOrDefault("QDRANT_URL", "idverify-qdrant:6334"),
		QdrantCollection:  getEnvOrDefault("QDRANT_COLLECTION", "idverify_faces"),
		FaceServiceURL:    getEnvOrDefault("FACE_SERVICE_URL", "http://idverify-face:8200"),
		TesseractPath:     getEnvOrDefault("TESSERACT_PATH", "/usr/bin/tesseract"),
		TessdataDir:       getEnvOrDefault("TESSDATA_DIR", ""),
		EnabledModes:      getEnvAsListOrDefault("OCR_MODES", []string{"standard", "single_column", "uniform_block", "single_line", "sparse_text"}),
		EnabledVariants:   getEnvAsListOrDefault("PREPROCESS_VARIANTS", []string{"grayscale", "clahe", "otsu", "adaptive", "sharpened", "upscaled", "deskewed"}),
		PassWorkers:       getEnvAsIntOrDefault("PASS_WORKERS", 4),
		PassTimeoutMs:     getEnvAsIntOrDefault("PASS_TIMEOUT_MS", 15000),
		SimThreshold:      getEnvAsFloatOrDefault("SIM_THRESHOLD", 0.6),
		LivenessThreshold: getEnvAsFloatOrDefault("LIVENESS_THRESHOLD", 0.7),
		LivenessEnabled:   getEnvAsBoolOrDefault("LIVENESS_ENABLED", true),
		OCRMinScore:       getEnvAsFloatOrDefault("OCR_MIN_SCORE", 60),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 10),
		MaxFileSize:       getEnvAsInt64OrDefault("MAX_FILE_SIZE", 20971520), // 20MB
		RequestTimeoutMs:  getEnvAsIntOrDefault("REQUEST_TIMEOUT_MS", 120000), // 2 minutes
		NodeEnv:           getEnvOrDefault("NODE_ENV", "development"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.QueueDriver != "redis" && c.QueueDriver != "asynq" {
		return fmt.Errorf("QUEUE_DRIVER must be redis or asynq, got %q", c.QueueDriver)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.PassWorkers < 1 || c.PassWorkers > 64 {
		return fmt.Errorf("PASS_WORKERS must be between 1 and 64, got %d", c.PassWorkers)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 1073741824 { // 1KB to 1GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 1GB, got %d", c.MaxFileSize)
	}

	if c.SimThreshold < 0 || c.SimThreshold > 1 {
		return fmt.Errorf("SIM_THRESHOLD must be between 0 and 1, got %f", c.SimThreshold)
	}

	if c.LivenessThreshold < 0 || c.LivenessThreshold > 1 {
		return fmt.Errorf("LIVENESS_THRESHOLD must be between 0 and 1, got %f", c.LivenessThreshold)
	}

	if c.OCRMinScore < 0 || c.OCRMinScore > 100 {
		return fmt.Errorf("OCR_MIN_SCORE must be between 0 and 100, got %f", c.OCRMinScore)
	}

	if len(c.EnabledModes) == 0 {
		return fmt.Errorf("OCR_MODES must name at least one mode")
	}

	if len(c.EnabledVariants) == 0 {
		return fmt.Errorf("PREPROCESS_VARIANTS must name at least one variant")
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrThrow gets environment variable or panics
func getEnvOrThrow(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsListOrDefault gets a comma-separated environment variable or returns default
func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}

	if len(values) == 0 {
		return defaultValue
	}

	return values
}
