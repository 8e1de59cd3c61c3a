// Package inference wraps the external classification endpoint that turns
// a component photo into a component type, a condition label and a
// confidence score.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"rvnl.in/fittrack/pkg/apperrors"
	"rvnl.in/fittrack/pkg/logger"
)

const serviceName = "inference service"

// defaultTimeout bounds one classification round trip. A timeout surfaces
// as a retryable upstream error, never as a partial material write.
const defaultTimeout = 10 * time.Second

// Classification is the inference result for one image.
type Classification struct {
	Component  string   `json:"component"`
	Condition  string   `json:"condition"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// New reads INFERENCE_URL and builds a client with the default timeout.
func New(log *logger.Logger) *Client {
	return &Client{
		baseURL: os.Getenv("INFERENCE_URL"),
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log,
	}
}

// NewWithBaseURL is the test constructor.
func NewWithBaseURL(baseURL string, log *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log,
	}
}

// Classify submits a blob reference for classification. Non-2xx responses
// and malformed JSON both come back as UpstreamError; context or client
// timeouts as the retryable timeout variant.
func (c *Client) Classify(ctx context.Context, imageRef string) (Classification, error) {
	if c.baseURL == "" {
		return Classification{}, apperrors.Upstream(serviceName, errors.New("INFERENCE_URL not configured"))
	}

	body, _ := json.Marshal(map[string]string{"imageRef": imageRef})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return Classification{}, apperrors.Upstream(serviceName, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return Classification{}, apperrors.UpstreamTimeout(serviceName, err)
		}
		return Classification{}, apperrors.Upstream(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("inference call failed", "status", resp.StatusCode, "imageRef", imageRef)
		return Classification{}, apperrors.Upstream(serviceName, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var out Classification
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Classification{}, apperrors.Upstream(serviceName, fmt.Errorf("malformed response: %w", err))
	}
	if out.Component == "" || out.Condition == "" {
		return Classification{}, apperrors.Upstream(serviceName, errors.New("malformed response: missing component or condition"))
	}
	return out, nil
}
