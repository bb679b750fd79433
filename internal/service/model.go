package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/vibesearch/internal/logger"
)

// Embedder maps audio files and text into one shared vector space.
type Embedder interface {
	Load(ctx context.Context) error
	EmbedAudio(ctx context.Context, path string) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ClapConfig holds configuration for the model server client.
type ClapConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// ClapClient talks to a CLAP model server over HTTP.
type ClapClient struct {
	client     *resty.Client
	model      string
	dimensions int
}

// NewClapClient creates a new model server client
func NewClapClient(cfg *ClapConfig) *ClapClient {
	client := resty.New().SetBaseURL(cfg.BaseURL)
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &ClapClient{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

type loadRequest struct {
	Model string `json:"model"`
}

type textRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Detail    string    `json:"detail,omitempty"`
}

// Load asks the server to load the model into memory.
func (c *ClapClient) Load(ctx context.Context) error {
	var resp embedResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(loadRequest{Model: c.model}).
		SetError(&resp).
		Post("/load")
	if err != nil {
		return fmt.Errorf("failed to call model server: %w", err)
	}
	return statusError(httpResp, resp.Detail)
}

// EmbedAudio uploads the audio file and returns its embedding.
func (c *ClapClient) EmbedAudio(ctx context.Context, path string) ([]float32, error) {
	var resp embedResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetFile("file", path).
		SetFormData(map[string]string{"model": c.model}).
		SetResult(&resp).
		SetError(&resp).
		Post("/embed/audio")
	if err != nil {
		return nil, fmt.Errorf("failed to embed audio %s: %w", path, err)
	}
	if err := statusError(httpResp, resp.Detail); err != nil {
		return nil, err
	}
	return c.checkVector(resp.Embedding)
}

// EmbedText returns the embedding of a text query.
func (c *ClapClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(textRequest{Model: c.model, Text: text}).
		SetResult(&resp).
		SetError(&resp).
		Post("/embed/text")
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if err := statusError(httpResp, resp.Detail); err != nil {
		return nil, err
	}
	return c.checkVector(resp.Embedding)
}

func (c *ClapClient) checkVector(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("model server returned no embedding")
	}
	if c.dimensions > 0 && len(v) != c.dimensions {
		return nil, fmt.Errorf("unexpected embedding size: got %d, expected %d", len(v), c.dimensions)
	}
	return v, nil
}

func statusError(resp *resty.Response, detail string) error {
	if resp.StatusCode() == http.StatusOK {
		return nil
	}
	if detail != "" {
		return fmt.Errorf("model server error: %s", detail)
	}
	return fmt.Errorf("model server error: status %d", resp.StatusCode())
}

// ModelState is the lifecycle of the process-wide model.
type ModelState string

const (
	ModelUnloaded ModelState = "unloaded"
	ModelLoaded   ModelState = "loaded"
	ModelFailed   ModelState = "failed"
)

// ModelHolder loads the embedder at most once per success and shares it
// between the embed pipeline and search. A failed load is retried by the
// next caller.
type ModelHolder struct {
	embedder Embedder

	mu      sync.Mutex
	state   ModelState
	lastErr error
}

// NewModelHolder wraps embedder in an unloaded holder.
func NewModelHolder(embedder Embedder) *ModelHolder {
	return &ModelHolder{embedder: embedder, state: ModelUnloaded}
}

// Ensure loads the model if needed. loadedNow is true when this call did the load.
// Failures are wrapped with ErrModelUnavailable.
func (h *ModelHolder) Ensure(ctx context.Context) (loadedNow bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == ModelLoaded {
		return false, nil
	}

	start := time.Now()
	if err := h.embedder.Load(ctx); err != nil {
		h.state = ModelFailed
		h.lastErr = err
		logger.CtxError(ctx, "Model load failed: %v", err)
		return false, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	h.state = ModelLoaded
	h.lastErr = nil
	logger.With(logger.Fields{logger.FieldDurationMs: time.Since(start).Milliseconds()}).
		Info(ctx, "Model loaded")
	return true, nil
}

// State reports the current lifecycle state and the last load error.
func (h *ModelHolder) State() (ModelState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.lastErr
}

// EmbedAudio ensures the model then embeds the file at path.
func (h *ModelHolder) EmbedAudio(ctx context.Context, path string) ([]float32, error) {
	if _, err := h.Ensure(ctx); err != nil {
		return nil, err
	}
	return h.embedder.EmbedAudio(ctx, path)
}

// EmbedText ensures the model then embeds text.
func (h *ModelHolder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if _, err := h.Ensure(ctx); err != nil {
		return nil, err
	}
	return h.embedder.EmbedText(ctx, text)
}

// IsModelUnavailable reports whether err came from a failed model load.
func IsModelUnavailable(err error) bool {
	return errors.Is(err, ErrModelUnavailable)
}
