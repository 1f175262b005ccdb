// Package meshy implements the client for the remote asynchronous
// image-to-3D provider used for final model generation. Jobs are created
// fire-and-forget; completion is observed later via polling or webhook
// and merged by the pipeline reconciler.
package meshy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// JobResult carries the artifact download URLs of a succeeded job.
type JobResult struct {
	ModelURLs   ModelURLs    `json:"model_urls"`
	TextureURLs []TextureURL `json:"texture_urls"`
}

// ModelURLs lists the mesh file downloads by format.
type ModelURLs struct {
	OBJ string `json:"obj"`
	FBX string `json:"fbx"`
}

// TextureURL tolerates both payload spellings the provider has used: a
// bare URL string or an object keyed by texture kind.
type TextureURL struct {
	BaseColor string
}

func (t *TextureURL) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.BaseColor = s
		return nil
	}
	var obj struct {
		BaseColor string `json:"base_color"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t.BaseColor = obj.BaseColor
	return nil
}

// JobStatus is one observation of a provider job.
type JobStatus struct {
	Status   string
	Progress int
	Result   *JobResult
	Error    string
}

// JobClient is the provider contract the pipeline depends on.
type JobClient interface {
	CreateJob(ctx context.Context, imageURL, name string) (string, error)
	JobStatus(ctx context.Context, taskID string) (*JobStatus, error)
	FetchArtifact(ctx context.Context, url string) ([]byte, error)
}

// Options configures the HTTP client.
type Options struct {
	APIKey     string
	BaseURL    string
	WebhookURL string
	ArtStyle   string
	HTTPClient *http.Client
}

// Client is the HTTP implementation of JobClient.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	webhookURL string
	artStyle   string
}

// NewClient builds a provider client; it errors only on a missing API key.
func NewClient(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.APIKey)
	if token == "" {
		return nil, errors.New("meshy: API key is required")
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.meshy.ai/v2"
	}
	style := opts.ArtStyle
	if style == "" {
		style = "realistic"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: client,
		baseURL:    base,
		token:      token,
		webhookURL: strings.TrimSpace(opts.WebhookURL),
		artStyle:   style,
	}, nil
}

type createRequest struct {
	ImageURL   string `json:"image_url"`
	EnablePBR  bool   `json:"enable_pbr"`
	ArtStyle   string `json:"art_style"`
	Name       string `json:"name,omitempty"`
	WebhookURL string `json:"webhook_url,omitempty"`
}

type createResponse struct {
	Result  string `json:"result"`
	Message string `json:"message"`
}

// CreateJob submits an image-to-3D job and returns the provider task id.
func (c *Client) CreateJob(ctx context.Context, imageURL, name string) (string, error) {
	if strings.TrimSpace(imageURL) == "" {
		return "", errors.New("meshy: image url is required")
	}
	payload := createRequest{
		ImageURL:   imageURL,
		EnablePBR:  true,
		ArtStyle:   c.artStyle,
		Name:       name,
		WebhookURL: c.webhookURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/image-to-3d", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("meshy: create job: %w", err)
	}
	defer resp.Body.Close()

	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return "", fmt.Errorf("meshy: create job: http %d", resp.StatusCode)
		}
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		msg := out.Message
		if msg == "" {
			msg = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return "", fmt.Errorf("meshy: create job: %s", msg)
	}
	if out.Result == "" {
		return "", errors.New("meshy: create job: empty task id")
	}
	return out.Result, nil
}

type statusResponse struct {
	Status      string       `json:"status"`
	Progress    int          `json:"progress"`
	ModelURLs   ModelURLs    `json:"model_urls"`
	TextureURLs []TextureURL `json:"texture_urls"`
	TaskError   string       `json:"task_error"`
	Error       string       `json:"error"`
}

// JobStatus fetches the current provider-side state of a job.
func (c *Client) JobStatus(ctx context.Context, taskID string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/image-to-3d/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("meshy: job status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("meshy: job status: http %d", resp.StatusCode)
	}

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	status := &JobStatus{
		Status:   out.Status,
		Progress: out.Progress,
		Error:    out.TaskError,
	}
	if status.Error == "" {
		status.Error = out.Error
	}
	if out.ModelURLs.OBJ != "" || out.ModelURLs.FBX != "" || len(out.TextureURLs) > 0 {
		status.Result = &JobResult{ModelURLs: out.ModelURLs, TextureURLs: out.TextureURLs}
	}
	return status, nil
}

// FetchArtifact downloads one generated file from the provider CDN.
func (c *Client) FetchArtifact(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("meshy: fetch artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("meshy: fetch artifact: http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
}

var _ JobClient = (*Client)(nil)
