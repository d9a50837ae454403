package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pixelpop/server/internal/infra"
)

// Options controls how the OpenAI images client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the OpenAI Images API. It translates requests
// to wire calls and classifies API failures; retry policy lives with the
// caller.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// GenerationRequest describes a plain text-to-image call.
type GenerationRequest struct {
	Prompt  string
	Size    string
	Quality string
}

// EditRequest describes an image-to-image call conditioned on source bytes.
type EditRequest struct {
	Prompt   string
	Size     string
	Image    []byte
	Filename string
}

// ImageData is one generated image as the API returns it: a hosted URL, or
// inline base64 bytes, depending on the model.
type ImageData struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
}

type imagesResponse struct {
	Data []ImageData `json:"data"`
}

type apiErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// APIError is a structured failure from the API, preserved so callers can
// distinguish policy rejections from transient faults.
type APIError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("openai: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("openai: status %d", e.StatusCode)
}

// ContentPolicy reports whether the failure is a safety/policy rejection of
// the prompt itself. These are never worth retrying.
func (e *APIError) ContentPolicy() bool {
	if e == nil {
		return false
	}
	code := strings.ToLower(e.Code)
	if strings.Contains(code, "content_policy") || code == "moderation_blocked" {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "content policy") ||
		strings.Contains(msg, "safety system") ||
		strings.Contains(msg, "rejected")
}

// IsContentPolicy reports whether err (anywhere in its chain) is a policy
// rejection.
func IsContentPolicy(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ContentPolicy()
}

// IsTransient reports whether err looks like a provider or network fault that
// a later attempt may not hit. Policy rejections are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.ContentPolicy() {
			return false
		}
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	// Anything that never produced an API response: DNS, timeouts, broken
	// connections.
	return true
}

// NewClient constructs an images client with sane defaults. A nil HTTP client
// gets a reusable one with a per-attempt timeout.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	model := opts.Model
	if model == "" {
		model = "gpt-image-1.5"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Model returns the configured image model identifier.
func (c *Client) Model() string {
	return c.model
}

// Generate performs a single text-to-image call.
func (c *Client) Generate(ctx context.Context, req GenerationRequest) (*ImageData, error) {
	payload := map[string]any{
		"model":  c.model,
		"prompt": req.Prompt,
		"n":      1,
	}
	if req.Size != "" {
		payload["size"] = req.Size
	}
	if req.Quality != "" {
		payload["quality"] = req.Quality
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.invoke(httpReq)
}

// Edit performs an image-to-image call with the prepared source bytes.
func (c *Client) Edit(ctx context.Context, req EditRequest) (*ImageData, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	filename := req.Filename
	if filename == "" {
		filename = "source.png"
	}
	part, err := form.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("openai: build form: %w", err)
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, fmt.Errorf("openai: write image part: %w", err)
	}
	fields := map[string]string{
		"model":  c.model,
		"prompt": req.Prompt,
		"n":      strconv.Itoa(1),
	}
	if req.Size != "" {
		fields["size"] = req.Size
	}
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("openai: write form field %s: %w", k, err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("openai: finalize form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", &buf)
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	return c.invoke(httpReq)
}

func (c *Client) invoke(req *http.Request) (*ImageData, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: invoke images api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.decodeError(resp)
	}

	var decoded imagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(decoded.Data) == 0 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "empty image data"}
	}
	image := decoded.Data[0]
	return &image, nil
}

func (c *Client) decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope apiErrorEnvelope
	data, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if readErr == nil && json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Type = envelope.Error.Type
		apiErr.Code = envelope.Error.Code
	} else if len(data) > 0 {
		apiErr.Message = strings.TrimSpace(string(data))
	}

	c.logger.Warn().
		Int("status", apiErr.StatusCode).
		Str("code", apiErr.Code).
		Msg("openai: images api error")

	return apiErr
}
