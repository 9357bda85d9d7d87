// Package vision wraps the external vision-language extraction service.
// It is a thin collaborator: the caller surfaces failures to the user,
// there is no retry logic here.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrMissingCredentials means no API key is configured for the service.
var ErrMissingCredentials = errors.New("vision service: missing API key")

// DocumentType classifies what kind of document a photo shows.
type DocumentType string

const (
	DocumentLabel   DocumentType = "LABEL"
	DocumentOrder   DocumentType = "ORDER"
	DocumentUnknown DocumentType = "UNKNOWN"
)

// Fields is the best-effort structured data extracted from one photo.
type Fields struct {
	DocumentType DocumentType `json:"documentType"`
	Reference    string       `json:"reference"`
	Length       string       `json:"length"`
	Quantity     string       `json:"quantity"`
}

// Extractor turns an image into structured fields, or fails.
type Extractor interface {
	Extract(ctx context.Context, imageDataURI string) (Fields, error)
}

// Client calls an HTTP vision extraction endpoint.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewClient creates a vision service client.
func NewClient(endpoint, apiKey, model string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{},
	}
}

type extractRequest struct {
	Model string `json:"model,omitempty"`
	Image string `json:"image"`
}

// Extract posts the image and decodes the structured fields.
func (c *Client) Extract(ctx context.Context, imageDataURI string) (Fields, error) {
	var fields Fields

	if c.apiKey == "" {
		return fields, ErrMissingCredentials
	}

	payload, err := json.Marshal(extractRequest{Model: c.model, Image: imageDataURI})
	if err != nil {
		return fields, fmt.Errorf("vision service: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fields, fmt.Errorf("vision service: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fields, fmt.Errorf("vision service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fields, fmt.Errorf("vision service: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fields, fmt.Errorf("vision service: quota exceeded")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return fields, fmt.Errorf("vision service: status %d: %s", resp.StatusCode, msg)
	}

	if err := json.Unmarshal(body, &fields); err != nil {
		return fields, fmt.Errorf("vision service: decoding response: %w", err)
	}

	if fields.DocumentType == "" {
		fields.DocumentType = DocumentUnknown
	}
	return fields, nil
}
