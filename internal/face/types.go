/**
 * Face analysis types
 *
 * Detection and embedding run in an external InsightFace sidecar; the
 * worker only moves bytes and vectors. Engine is the seam the
 * processor depends on so tests can substitute a stub.
 */

package face

import "context"

// EmbeddingDim is the embedding size produced by the sidecar model.
const EmbeddingDim = 512

// Face is one detected face with its identity embedding.
type Face struct {
	Bbox      [4]float64   `json:"bbox"` // x1, y1, x2, y2
	Landmarks [][2]float64 `json:"landmarks,omitempty"`
	DetScore  float64      `json:"detScore"`
	Embedding []float32    `json:"embedding"`
	Age       int          `json:"age,omitempty"`
	Gender    string       `json:"gender,omitempty"`
}

// LivenessResult carries the anti-spoofing assessment of a live photo.
type LivenessResult struct {
	Score  float64            `json:"score"`
	Passed bool               `json:"passed"`
	Checks map[string]float64 `json:"checks,omitempty"`
}

// Engine is the face analysis contract. DetectAndEmbed returns the
// most prominent face; no face at all is a NO_FACE_DETECTED error.
type Engine interface {
	DetectAndEmbed(ctx context.Context, image []byte, source string) (*Face, error)
	Liveness(ctx context.Context, image []byte) (*LivenessResult, error)
}
