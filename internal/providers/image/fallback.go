package image

import (
	"context"

	"github.com/rs/zerolog"
)

// FallbackGenerator consults the hosted provider first and falls back to
// the procedural renderer on any primary failure, including rate limits
// and transient unavailability. With a non-empty prompt the chain as a
// whole cannot fail.
type FallbackGenerator struct {
	primary  *HostedGenerator
	fallback Generator
	logger   zerolog.Logger
}

// NewFallbackGenerator wires the chain. primary may be unconfigured, in
// which case every request goes straight to the fallback.
func NewFallbackGenerator(primary *HostedGenerator, fallback Generator, logger zerolog.Logger) *FallbackGenerator {
	return &FallbackGenerator{primary: primary, fallback: fallback, logger: logger}
}

// Generate tries the hosted provider, then the procedural renderer.
func (g *FallbackGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	if g.primary.Configured() {
		res, err := g.primary.Generate(ctx, req)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		g.logger.Warn().Err(err).Msg("hosted image provider failed, using procedural fallback")
	}
	return g.fallback.Generate(ctx, req)
}

var _ Generator = (*FallbackGenerator)(nil)
