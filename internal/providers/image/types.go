package image

import "context"

// Request describes a normalized 2D generation request passed to any
// image provider.
type Request struct {
	Prompt          string
	RefinementNotes string
}

// Result is one generated concept image. ExternalURL is set only by
// providers that host the image themselves; the downstream image-to-3D
// provider needs such a reference.
type Result struct {
	Data        []byte
	ExternalURL string
	Filename    string
}

// Generator is the contract implemented by all 2D image providers.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}
