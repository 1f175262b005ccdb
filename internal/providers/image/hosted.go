package image

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

// HostedOptions configures the hosted text-to-image client.
type HostedOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Size       string
	Quality    string
	HTTPClient *http.Client
}

// HostedGenerator calls a DALL-E style image generation API. The provider
// returns a hosted URL for each image; the client downloads the bytes and
// keeps the URL as the external reference for downstream image-to-3D
// conversion.
type HostedGenerator struct {
	httpClient *http.Client
	baseURL    string
	token      string
	model      string
	size       string
	quality    string
}

// NewHostedGenerator builds a hosted generator from options, applying
// defaults for everything but the API key.
func NewHostedGenerator(opts HostedOptions) *HostedGenerator {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	model := opts.Model
	if model == "" {
		model = "dall-e-3"
	}
	size := opts.Size
	if size == "" {
		size = "1024x1024"
	}
	quality := opts.Quality
	if quality == "" {
		quality = "hd"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &HostedGenerator{
		httpClient: client,
		baseURL:    base,
		token:      strings.TrimSpace(opts.APIKey),
		model:      model,
		size:       size,
		quality:    quality,
	}
}

// Configured reports whether the client has credentials to call out.
func (g *HostedGenerator) Configured() bool {
	return g != nil && g.token != ""
}

type hostedRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	N       int    `json:"n"`
}

type hostedResponse struct {
	Data []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate produces one concept image via the hosted API.
func (g *HostedGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	if !g.Configured() {
		return nil, errors.New("hosted image provider: API key is missing")
	}
	payload := hostedRequest{
		Model:   g.model,
		Prompt:  BuildProductPrompt(req.Prompt, req.RefinementNotes),
		Size:    g.size,
		Quality: g.quality,
		N:       1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("hosted image provider: %w", err)
	}
	defer resp.Body.Close()

	var out hostedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("hosted image provider: http %d", resp.StatusCode)
		}
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		msg := fmt.Sprintf("http %d", resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("hosted image provider: %s", msg)
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return nil, errors.New("hosted image provider: empty response")
	}

	imageURL := out.Data[0].URL
	data, err := g.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, ExternalURL: imageURL, Filename: ArtifactFilename("", "png")}, nil
}

func (g *HostedGenerator) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hosted image provider: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hosted image provider: download: http %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

var _ Generator = (*HostedGenerator)(nil)
