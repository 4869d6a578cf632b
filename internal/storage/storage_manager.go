/**
 * Storage Manager for IDVerify Worker
 *
 * Coordinates storage across PostgreSQL (job metadata, verification
 * results) and Qdrant (face embeddings). Writes the vector first and
 * rolls it back if the relational insert fails, so the two systems
 * never disagree about which faces have results.
 */

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	verrors "github.com/veridoc/idverify-worker/internal/errors"
)

// StorageManager coordinates PostgreSQL and Qdrant operations
type StorageManager struct {
	postgres *PostgresClient
	qdrant   *QdrantClient
}

// ResultInput represents one verification outcome to persist
type ResultInput struct {
	JobID           string
	Verdict         string
	Rule            string
	ExtractionScore float64
	Similarity      float64
	LivenessScore   float64
	Fields          map[string]interface{}
	FaceEmbedding   []float32
}

// ResultOutput carries the IDs assigned across both systems
type ResultOutput struct {
	ResultID    string
	JobID       string
	FacePointID string
	CreatedAt   time.Time
}

// NewStorageManager creates a new storage manager
func NewStorageManager(postgresURL string, qdrantAddress string, qdrantCollection string) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	qdrant, err := NewQdrantClient(qdrantAddress, qdrantCollection)
	if err != nil {
		postgres.Close()
		return nil, fmt.Errorf("failed to initialize Qdrant client: %w", err)
	}

	return &StorageManager{
		postgres: postgres,
		qdrant:   qdrant,
	}, nil
}

// StoreResult persists one verification outcome. The face embedding is
// optional: extraction-only jobs carry no face and skip the vector
// write entirely.
func (sm *StorageManager) StoreResult(ctx context.Context, input *ResultInput) (*ResultOutput, error) {
	if input == nil {
		return nil, fmt.Errorf("input is required")
	}

	if input.JobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	resultID := uuid.New().String()
	facePointID := ""

	if len(input.FaceEmbedding) > 0 {
		if len(input.FaceEmbedding) != faceEmbeddingDims {
			return nil, fmt.Errorf("invalid embedding dimensions: expected %d, got %d", faceEmbeddingDims, len(input.FaceEmbedding))
		}

		facePointID = uuid.New().String()
		facePoint := &FacePoint{
			ID:     facePointID,
			Vector: input.FaceEmbedding,
			Metadata: map[string]interface{}{
				"job_id":    input.JobID,
				"result_id": resultID,
				"verdict":   input.Verdict,
			},
			Timestamp: time.Now().Unix(),
		}

		if err := sm.qdrant.UpsertFace(ctx, facePoint); err != nil {
			return nil, verrors.NewStorageFailedError(input.JobID, err)
		}
	}

	rec := &VerificationRecord{
		ID:              resultID,
		JobID:           input.JobID,
		Verdict:         input.Verdict,
		Rule:            input.Rule,
		ExtractionScore: input.ExtractionScore,
		Similarity:      input.Similarity,
		LivenessScore:   input.LivenessScore,
		Fields:          input.Fields,
		FacePointID:     facePointID,
	}

	if _, err := sm.postgres.StoreVerificationRecord(ctx, rec); err != nil {
		if facePointID != "" {
			// Rollback: remove the orphaned vector
			sm.qdrant.DeleteFace(ctx, facePointID)
		}
		return nil, verrors.NewStorageFailedError(input.JobID, err)
	}

	return &ResultOutput{
		ResultID:    resultID,
		JobID:       input.JobID,
		FacePointID: facePointID,
		CreatedAt:   time.Now(),
	}, nil
}

// SearchSimilarFaces returns stored embeddings closest to the query.
func (sm *StorageManager) SearchSimilarFaces(ctx context.Context, queryVector []float32, limit int) ([]*FacePoint, error) {
	return sm.qdrant.SearchFaces(ctx, queryVector, limit)
}

// UpdateJobStatus updates job status in PostgreSQL
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetJobByID retrieves job by ID
func (sm *StorageManager) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	return sm.postgres.GetJobByID(ctx, jobID)
}

// GetStats returns statistics from both systems
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	pgStats := sm.postgres.GetStats()

	qdrantStats, err := sm.qdrant.GetCollectionInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Qdrant stats: %w", err)
	}

	return map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
		"qdrant": qdrantStats,
	}, nil
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	var pgErr, qdErr error

	if sm.postgres != nil {
		pgErr = sm.postgres.Close()
	}

	if sm.qdrant != nil {
		qdErr = sm.qdrant.Close()
	}

	if pgErr != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", pgErr)
	}

	if qdErr != nil {
		return fmt.Errorf("failed to close Qdrant: %w", qdErr)
	}

	return nil
}
