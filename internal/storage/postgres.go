/**
 * PostgreSQL Client for IDVerify Worker
 *
 * Handles job persistence and verification result storage.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	verrors "github.com/veridoc/idverify-worker/internal/errors"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	Status           string
	Verdict          string
	ExtractionScore  float64
	Similarity       float64
	LivenessScore    float64
	ProcessingTimeMs int64
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

// VerificationRecord is the persisted outcome of one job
type VerificationRecord struct {
	ID              string
	JobID           string
	Verdict         string
	Rule            string
	ExtractionScore float64
	Similarity      float64
	LivenessScore   float64
	Fields          map[string]interface{}
	FacePointID     string
	CreatedAt       time.Time
}

// sanitizeScore clamps a 0-1 score and rounds it to 4 decimal places.
// PostgreSQL NUMERIC casts reject float64 values carrying excess
// precision like 0.9632000000000001.
func sanitizeScore(score float64) float64 {
	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}
	return float64(int(score*10000+0.5)) / 10000
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpdateJobStatus updates job status in the database. An UPSERT is
// used so the worker can create the job record when the API has not
// created it yet.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO idverify.verification_jobs (
			id, status, verdict, extraction_score, similarity, liveness_score,
			processing_time_ms, error_code, error_message, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, $2, NULLIF($3, ''),
			NULLIF($4, 0), NULLIF($5::NUMERIC(5,4), 0), NULLIF($6::NUMERIC(5,4), 0),
			NULLIF($7, 0), NULLIF($8, ''), NULLIF($9, ''),
			COALESCE($10::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			verdict = COALESCE(NULLIF(EXCLUDED.verdict, ''), idverify.verification_jobs.verdict),
			extraction_score = COALESCE(NULLIF(EXCLUDED.extraction_score, 0), idverify.verification_jobs.extraction_score),
			similarity = COALESCE(NULLIF(EXCLUDED.similarity::NUMERIC(5,4), 0), idverify.verification_jobs.similarity),
			liveness_score = COALESCE(NULLIF(EXCLUDED.liveness_score::NUMERIC(5,4), 0), idverify.verification_jobs.liveness_score),
			processing_time_ms = COALESCE(NULLIF(EXCLUDED.processing_time_ms, 0), idverify.verification_jobs.processing_time_ms),
			error_code = NULLIF(EXCLUDED.error_code, ''),
			error_message = NULLIF(EXCLUDED.error_message, ''),
			metadata = COALESCE(EXCLUDED.metadata, idverify.verification_jobs.metadata),
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,
		update.Status,
		update.Verdict,
		update.ExtractionScore,
		sanitizeScore(update.Similarity),
		sanitizeScore(update.LivenessScore),
		update.ProcessingTimeMs,
		update.ErrorCode,
		update.ErrorMessage,
		metadataJSON,
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", update.JobID)
	}

	if err != nil {
		return verrors.NewDatabaseFailedError(update.JobID, "update job status", err)
	}

	return nil
}

// StoreVerificationRecord persists the full outcome of one job,
// extracted fields included.
func (p *PostgresClient) StoreVerificationRecord(ctx context.Context, rec *VerificationRecord) (string, error) {
	if rec.JobID == "" {
		return "", fmt.Errorf("job ID is required")
	}

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fields: %w", err)
	}

	query := `
		INSERT INTO idverify.verification_results (
			id, job_id, verdict, rule, extraction_score,
			similarity, liveness_score, fields, face_point_id, created_at
		) VALUES (
			$1::uuid, $2::uuid, $3, $4, $5,
			$6::NUMERIC(5,4), $7::NUMERIC(5,4), $8::jsonb,
			NULLIF($9, '')::uuid, NOW()
		)
		RETURNING id
	`

	var resultID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		rec.ID,
		rec.JobID,
		rec.Verdict,
		rec.Rule,
		rec.ExtractionScore,
		sanitizeScore(rec.Similarity),
		sanitizeScore(rec.LivenessScore),
		fieldsJSON,
		rec.FacePointID,
	).Scan(&resultID)

	if err != nil {
		return "", verrors.NewDatabaseFailedError(rec.JobID, "store verification record", err)
	}

	return resultID, nil
}

// GetJobByID retrieves a job by ID
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id, status, verdict, extraction_score, similarity, liveness_score,
			processing_time_ms, error_code, error_message, metadata,
			created_at, updated_at
		FROM idverify.verification_jobs
		WHERE id = $1::uuid
	`

	var (
		id, status                  string
		verdict                     sql.NullString
		extractionScore             sql.NullFloat64
		similarity, livenessScore   sql.NullFloat64
		processingTimeMs            sql.NullInt64
		errorCode, errorMessage     sql.NullString
		metadataJSON                []byte
		createdAt, updatedAt        time.Time
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&id, &status, &verdict, &extractionScore, &similarity, &livenessScore,
		&processingTimeMs, &errorCode, &errorMessage,
		&metadataJSON, &createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	if err != nil {
		return nil, verrors.NewDatabaseFailedError(jobID, "get job", err)
	}

	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	result := map[string]interface{}{
		"id":        id,
		"status":    status,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
		"metadata":  metadata,
	}

	if verdict.Valid {
		result["verdict"] = verdict.String
	}
	if extractionScore.Valid {
		result["extractionScore"] = extractionScore.Float64
	}
	if similarity.Valid {
		result["similarity"] = similarity.Float64
	}
	if livenessScore.Valid {
		result["livenessScore"] = livenessScore.Float64
	}
	if processingTimeMs.Valid {
		result["processingTimeMs"] = processingTimeMs.Int64
	}
	if errorCode.Valid {
		result["errorCode"] = errorCode.String
	}
	if errorMessage.Valid {
		result["errorMessage"] = errorMessage.String
	}

	return result, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
