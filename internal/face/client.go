/**
 * Face Service Client - InsightFace Sidecar
 *
 * This client delegates detection, embedding and liveness to the face
 * sidecar service. The worker stays model-agnostic: the sidecar owns
 * model selection (buffalo_l by default) and GPU placement, and the
 * worker just ships base64 image payloads over HTTP.
 */

package face

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	verrors "github.com/veridoc/idverify-worker/internal/errors"
	"github.com/veridoc/idverify-worker/internal/logging"
)

// Client talks to the face sidecar over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// detectRequest is the payload for /api/face/detect.
type detectRequest struct {
	Image  string `json:"image"`  // Base64 encoded image
	Format string `json:"format"` // "base64"
	Source string `json:"source"` // "document" or "live"
}

// detectResponse wraps the sidecar detection result.
type detectResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Faces          []Face `json:"faces"`
		ProcessingTime int64  `json:"processingTime"`
	} `json:"data"`
}

// livenessRequest is the payload for /api/face/liveness.
type livenessRequest struct {
	Image  string `json:"image"`
	Format string `json:"format"`
}

// livenessResponse wraps the sidecar liveness result.
type livenessResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    LivenessResult `json:"data"`
}

// NewClient creates a face sidecar client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logging.NewLogger("FaceClient"),
	}
}

// DetectAndEmbed detects faces in the image and returns the one with
// the highest detection score, embedding included. Source labels the
// image kind for the sidecar's detector presets: passport pages use
// looser thresholds than live selfies.
func (c *Client) DetectAndEmbed(ctx context.Context, image []byte, source string) (*Face, error) {
	req := &detectRequest{
		Image:  base64.StdEncoding.EncodeToString(image),
		Format: "base64",
		Source: source,
	}

	endpoint := fmt.Sprintf("%s/api/face/detect", c.baseURL)
	body, err := c.post(ctx, endpoint, req)
	if err != nil {
		return nil, verrors.NewEngineUnavailableError("", "face_detect", err)
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse detect response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("face detection failed: %s", resp.Message)
	}
	if len(resp.Data.Faces) == 0 {
		return nil, verrors.NewNoFaceDetectedError("", source, nil)
	}

	best := resp.Data.Faces[0]
	for _, f := range resp.Data.Faces[1:] {
		if f.DetScore > best.DetScore {
			best = f
		}
	}

	c.logger.Info("Face detected",
		"source", source,
		"faces", len(resp.Data.Faces),
		"detScore", best.DetScore,
		"processingTime", resp.Data.ProcessingTime)

	return &best, nil
}

// Liveness runs anti-spoofing checks on a live capture.
func (c *Client) Liveness(ctx context.Context, image []byte) (*LivenessResult, error) {
	req := &livenessRequest{
		Image:  base64.StdEncoding.EncodeToString(image),
		Format: "base64",
	}

	endpoint := fmt.Sprintf("%s/api/face/liveness", c.baseURL)
	body, err := c.post(ctx, endpoint, req)
	if err != nil {
		return nil, verrors.NewEngineUnavailableError("", "liveness", err)
	}

	var resp livenessResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse liveness response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("liveness check failed: %s", resp.Message)
	}

	c.logger.Info("Liveness check complete",
		"score", resp.Data.Score,
		"passed", resp.Data.Passed)

	return &resp.Data, nil
}

// HealthCheck verifies the face sidecar is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/api/health", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Source", "idverify-worker")
	httpReq.Header.Set("X-Request-ID", fmt.Sprintf("face-%d", time.Now().UnixNano()))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to face service failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("face service returned error status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
