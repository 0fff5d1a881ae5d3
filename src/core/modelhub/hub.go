package modelhub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"lungscan-server-go/src/configs"
	"lungscan-server-go/src/core/types"
	"lungscan-server-go/src/core/utils"
)

const (
	// Artifacts above this size are refused; the VGG16 weights are ~60MB.
	maxArtifactSize = 2 << 30
)

// Hub downloads and caches the classification model artifact. The cache
// path is stable, so a second EnsureLocal call returns without network I/O.
type Hub struct {
	config     *configs.ModelConfig
	logger     *utils.TaggedLogger
	httpClient *http.Client
}

// NewHub creates the hub client.
func NewHub(config *configs.ModelConfig, logger *utils.Logger) *Hub {
	return &Hub{
		config: config,
		logger: logger.WithTag("modelhub"),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
	}
}

// CachePath is the fixed local location of the artifact.
func (h *Hub) CachePath() string {
	return filepath.Join(h.config.CacheDir, h.config.Filename)
}

// EnsureLocal returns the local artifact path, downloading it from the hub
// on first use. Failures wrap types.ErrModelUnavailable.
func (h *Hub) EnsureLocal(ctx context.Context) (string, error) {
	cachePath := h.CachePath()
	if _, err := os.Stat(cachePath); err == nil {
		h.logger.Info(fmt.Sprintf("using cached model at %s", cachePath))
		return cachePath, nil
	}

	if err := os.MkdirAll(h.config.CacheDir, 0755); err != nil {
		return "", fmt.Errorf("%w: create cache dir: %v", types.ErrModelUnavailable, err)
	}

	url := fmt.Sprintf("%s/%s/resolve/main/%s", h.config.HubEndpoint, h.config.RepoID, h.config.Filename)
	h.logger.Info(fmt.Sprintf("model not found locally, downloading from %s", url))

	tempPath, err := h.download(ctx, url)
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %v", types.ErrModelUnavailable, url, err)
	}

	// The temp file may live on another filesystem than the cache dir.
	if err := moveFile(tempPath, cachePath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("%w: store artifact: %v", types.ErrModelUnavailable, err)
	}

	h.logger.Info(fmt.Sprintf("model saved at %s", cachePath))
	return cachePath, nil
}

func (h *Hub) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %v", err)
	}
	req.Header.Set("User-Agent", "LungScan-Model-Fetcher/1.0")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}
	if resp.ContentLength > maxArtifactSize {
		return "", fmt.Errorf("artifact too large: %d bytes", resp.ContentLength)
	}

	tempFile, err := os.CreateTemp("", "model_*.download")
	if err != nil {
		return "", fmt.Errorf("create temp file: %v", err)
	}

	written, err := io.Copy(tempFile, io.LimitReader(resp.Body, maxArtifactSize))
	closeErr := tempFile.Close()
	if err != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("download failed: %v", err)
	}
	if closeErr != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("close temp file: %v", closeErr)
	}

	h.logger.Debug("artifact downloaded", map[string]interface{}{
		"url":  url,
		"size": written,
	})

	return tempFile.Name(), nil
}

// moveFile renames src to dst, falling back to copy+remove when the two
// paths live on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %v", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %v", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy artifact: %v", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("flush destination: %v", err)
	}

	return os.Remove(src)
}
