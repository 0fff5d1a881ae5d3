package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lungscan-server-go/src/configs"
	"lungscan-server-go/src/core/utils"
)

// ServingEngine calls a TensorFlow-Serving-style REST runtime that hosts
// the model artifact. The http.Client is safe for concurrent use, so the
// engine is too.
type ServingEngine struct {
	baseURL    string
	modelName  string
	logger     *utils.Logger
	httpClient *http.Client
}

type predictRequest struct {
	Instances [][][][]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float32 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// NewServingEngine creates the runtime client.
func NewServingEngine(config *configs.ModelConfig, logger *utils.Logger) *ServingEngine {
	return &ServingEngine{
		baseURL:    strings.TrimSuffix(config.ServingURL, "/"),
		modelName:  config.ServingName,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Predict posts one batch and returns the score vector of its single image.
func (e *ServingEngine) Predict(ctx context.Context, tensor [][][][]float32) ([]float32, error) {
	requestBody, err := json.Marshal(predictRequest{Instances: tensor})
	if err != nil {
		return nil, fmt.Errorf("marshal predict request: %v", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s:predict", e.baseURL, e.modelName)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("create predict request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict call failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("predict status %d: %s", resp.StatusCode, string(body))
	}

	var response predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode predict response: %v", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("runtime error: %s", response.Error)
	}
	if len(response.Predictions) == 0 {
		return nil, fmt.Errorf("runtime returned no predictions")
	}

	return response.Predictions[0], nil
}
