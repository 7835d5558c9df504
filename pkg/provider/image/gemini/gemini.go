// Package gemini implements the image.Provider interface on top of the Gemini
// image generation models.
package gemini

import (
	"context"
	"fmt"

	"github.com/verbascape/verbascape/pkg/provider/image"
	"google.golang.org/genai"
)

var _ image.Provider = (*Provider)(nil)

const defaultModel = "gemini-3-pro-image-preview"

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Gemini model used for panorama generation.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithHTTPOptions overrides the genai HTTP options. Primarily used in tests
// to point at a local mock server.
func WithHTTPOptions(opts genai.HTTPOptions) Option {
	return func(p *Provider) { p.httpOpts = &opts }
}

// Provider implements image.Provider for the Gemini API.
type Provider struct {
	apiKey   string
	model    string
	httpOpts *genai.HTTPOptions
}

// New creates a new Gemini image Provider with the given API key and options.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey: apiKey,
		model:  defaultModel,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// GeneratePanorama renders the described scene as an equirectangular panorama.
func (p *Provider) GeneratePanorama(ctx context.Context, scene string) (image.Panorama, error) {
	cfg := &genai.ClientConfig{APIKey: p.apiKey}
	if p.httpOpts != nil {
		cfg.HTTPOptions = *p.httpOpts
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return image.Panorama{}, fmt.Errorf("gemini: client: %w", err)
	}

	contents := []*genai.Content{
		{Parts: []*genai.Part{genai.NewPartFromText(image.PanoramaPrompt(scene))}},
	}
	genCfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: "16:9",
			ImageSize:   "2K",
		},
	}

	resp, err := client.Models.GenerateContent(ctx, p.model, contents, genCfg)
	if err != nil {
		return image.Panorama{}, fmt.Errorf("gemini: generate content: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return image.Panorama{MIMEType: mime, Data: part.InlineData.Data}, nil
		}
	}

	return image.Panorama{}, image.ErrNoImage
}
