// Package vision calls the Google Cloud Vision REST API for document text
// detection.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultEndpoint = "https://vision.googleapis.com/v1/images:annotate"

var (
	// ErrNotConfigured reports a missing API key.
	ErrNotConfigured = errors.New("vision api key not configured")
	// ErrRateLimited reports the monthly quota being exhausted (HTTP 429).
	ErrRateLimited = errors.New("vision api rate limited")
	// ErrNoText reports a response that contained no detected text.
	ErrNoText = errors.New("no text detected")
)

// Client invokes the Vision images:annotate endpoint.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewClient constructs a Vision client. The endpoint override is for tests.
func NewClient(apiKey, endpoint string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultEndpoint
	}
	timeout := 60 * time.Second
	if raw := strings.TrimSpace(os.Getenv("VISION_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type annotateEntry struct {
	Image    imageContent `json:"image"`
	Features []feature    `json:"features"`
}

type imageContent struct {
	Content string `json:"content"`
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

type annotateResponse struct {
	Responses []struct {
		FullTextAnnotation *struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// DetectDocumentText runs DOCUMENT_TEXT_DETECTION over a base64-encoded image
// and returns the full document text.
func (c *Client) DetectDocumentText(ctx context.Context, base64Image string) (string, error) {
	payload, err := json.Marshal(annotateRequest{
		Requests: []annotateEntry{{
			Image:    imageContent{Content: base64Image},
			Features: []feature{{Type: "DOCUMENT_TEXT_DETECTION", MaxResults: 1}},
		}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+c.apiKey, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("vision api status=%d body=%s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("vision response parse: %w", err)
	}
	if len(parsed.Responses) == 0 {
		return "", ErrNoText
	}
	first := parsed.Responses[0]
	if first.Error != nil {
		return "", fmt.Errorf("vision api error: %s", first.Error.Message)
	}
	if first.FullTextAnnotation == nil || first.FullTextAnnotation.Text == "" {
		return "", ErrNoText
	}
	return first.FullTextAnnotation.Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
