package image

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"pixelpop/server/internal/domain"
	"pixelpop/server/internal/providers/openai"
	"pixelpop/server/internal/retry"
)

// imagesClient is the subset of the OpenAI client the adapter depends on.
type imagesClient interface {
	Generate(ctx context.Context, req openai.GenerationRequest) (*openai.ImageData, error)
	Edit(ctx context.Context, req openai.EditRequest) (*openai.ImageData, error)
	Model() string
}

// OpenAIGenerator wraps the raw images client with the retry budget and the
// edit-mode source preparation. A request with a source image reference is
// fetched, re-encoded, letterboxed to the output aspect, and submitted to the
// edits endpoint; everything else goes to plain generation.
type OpenAIGenerator struct {
	client     imagesClient
	httpClient *http.Client
	policy     retry.Policy
}

// NewOpenAIGenerator wires the adapter with the default retry policy:
// transient provider faults are retried, policy rejections fail fast.
func NewOpenAIGenerator(client imagesClient, httpClient *http.Client) *OpenAIGenerator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &OpenAIGenerator{
		client:     client,
		httpClient: httpClient,
		policy:     retry.DefaultPolicy(openai.IsTransient),
	}
}

// WithPolicy overrides the retry policy. Tests use this to drop the waits.
func (g *OpenAIGenerator) WithPolicy(policy retry.Policy) *OpenAIGenerator {
	g.policy = policy
	return g
}

// Generate fulfils the Generator contract.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*Artifact, error) {
	size := req.Size
	if size == "" {
		size = defaultSize
	}
	quality := providerQuality(req.Quality)

	call := func(ctx context.Context) (*openai.ImageData, error) {
		return g.client.Generate(ctx, openai.GenerationRequest{
			Prompt:  req.Prompt,
			Size:    size,
			Quality: quality,
		})
	}

	if src := req.SourceImageURL; src != "" {
		raw, err := fetchSource(ctx, g.httpClient, src)
		if err != nil {
			return nil, err
		}
		prepared, err := prepareSource(raw, size)
		if err != nil {
			return nil, err
		}
		call = func(ctx context.Context) (*openai.ImageData, error) {
			return g.client.Edit(ctx, openai.EditRequest{
				Prompt: req.Prompt,
				Size:   size,
				Image:  prepared,
			})
		}
	}

	var img *openai.ImageData
	err := g.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		img, callErr = call(ctx)
		return callErr
	})
	if err != nil {
		if openai.IsContentPolicy(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrPromptRejected, err)
		}
		return nil, err
	}

	return artifactFromImageData(img)
}

func artifactFromImageData(img *openai.ImageData) (*Artifact, error) {
	if img == nil {
		return nil, domain.ErrNoImageData
	}
	if img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("image: decode inline data: %w", err)
		}
		return &Artifact{Data: data}, nil
	}
	if img.URL != "" {
		return &Artifact{URL: img.URL}, nil
	}
	return nil, domain.ErrNoImageData
}

// providerQuality maps the billing tier onto the model's quality parameter.
// The model accepts low/medium/high; only the premium tier asks for high.
func providerQuality(tier string) string {
	if tier == "high" {
		return "high"
	}
	return "medium"
}

var _ Generator = (*OpenAIGenerator)(nil)
