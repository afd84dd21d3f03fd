package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	RemoteName           = "remote-ocr"
	remoteDefaultTimeout = 120 * time.Second
	remoteMaxRetries     = 3
	remoteRetryDelay     = 2 * time.Second
)

// RemoteConfig holds configuration for the remote OCR client.
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RemoteClient implements Provider against an HTTP OCR service that
// accepts a base64 page image and returns word boxes in pixel space.
type RemoteClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRemoteClient creates a client for the OCR service at cfg.BaseURL.
func NewRemoteClient(cfg RemoteConfig) *RemoteClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = remoteDefaultTimeout
	}
	return &RemoteClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (c *RemoteClient) Name() string {
	return RemoteName
}

// RecognizePage sends one page image for recognition, retrying
// transient failures with exponential backoff.
func (c *RemoteClient) RecognizePage(ctx context.Context, png []byte, pageNum int) (*PageResult, error) {
	reqBody := remoteRequest{
		Image: base64.StdEncoding.EncodeToString(png),
		Page:  pageNum,
	}

	var result *PageResult
	err := retry.Do(
		func() error {
			res, err := c.doRequest(ctx, reqBody)
			if err != nil {
				return err
			}
			result = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(remoteMaxRetries),
		retry.Delay(remoteRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("ocr page %d: %w", pageNum, err)
	}
	return result, nil
}

func (c *RemoteClient) doRequest(ctx context.Context, body remoteRequest) (*PageResult, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/recognize", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp remoteErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("ocr service error (status %d): %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("ocr service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result PageResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

type remoteRequest struct {
	Image string `json:"image"`
	Page  int    `json:"page"`
}

type remoteErrorResponse struct {
	Error string `json:"error"`
}

// Verify interface
var _ Provider = (*RemoteClient)(nil)
