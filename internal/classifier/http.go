package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/CalmPipe/internal/models"
	"github.com/BTreeMap/CalmPipe/internal/remote"
)

// maxReplyBytes caps how much of a classifier reply is read.
const maxReplyBytes = 1 << 20

// HTTP forwards requests to a classifier service exposing /triage,
// /insights and /reframe.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// HTTPOption configures an HTTP classifier.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// NewHTTP creates an HTTP classifier rooted at baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTP {
	h := &HTTP{baseURL: strings.TrimRight(baseURL, "/"), client: http.DefaultClient}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ClassifyTriage implements triage.Remote.
func (h *HTTP) ClassifyTriage(ctx context.Context, in models.TriageInput) (string, error) {
	return h.post(ctx, "/triage", in)
}

// SummarizeWeek implements insight.Remote.
func (h *HTTP) SummarizeWeek(ctx context.Context, req models.InsightRequest) (string, error) {
	return h.post(ctx, "/insights", req)
}

// Reframe implements reframe.Remote.
func (h *HTTP) Reframe(ctx context.Context, req models.ReframeRequest) (string, error) {
	return h.post(ctx, "/reframe", req)
}

func (h *HTTP) post(ctx context.Context, path string, body interface{}) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", remote.ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", remote.Classify(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", remote.Classify(ctx, err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Debug("HTTP.post: classifier returned non-success status", "path", path, "status", resp.StatusCode)
		return "", fmt.Errorf("%w: %s returned status %d", remote.ErrUnavailable, path, resp.StatusCode)
	}
	return string(data), nil
}
