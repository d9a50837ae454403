package image

import "context"

// Request is a normalized generation request handed to a provider adapter.
// Quality carries the billing tier; adapters map it to whatever the provider
// understands.
type Request struct {
	Prompt         string
	Size           string
	Quality        string
	SourceImageURL string
	RequestID      string
}

// Artifact is the provider's raw output before post-processing: a hosted URL,
// inline bytes, or both.
type Artifact struct {
	URL  string
	Data []byte
}

// Generator is the contract implemented by provider adapters.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Artifact, error)
}
