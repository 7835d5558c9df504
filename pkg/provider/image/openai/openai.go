// Package openai implements the image.Provider interface on top of the OpenAI
// Images API.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/verbascape/verbascape/pkg/provider/image"
)

var _ image.Provider = (*Provider)(nil)

const defaultModel = openai.ImageModelGPTImage1

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the image model used for panorama generation.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the API base URL. Primarily used in tests to point at
// a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// Provider implements image.Provider for the OpenAI Images API.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
}

// New creates a new OpenAI image Provider with the given API key and options.
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
// The widest supported landscape size approximates the 2:1 panorama ratio.
func (p *Provider) GeneratePanorama(ctx context.Context, scene string) (image.Panorama, error) {
	clientOpts := []option.RequestOption{option.WithAPIKey(p.apiKey)}
	if p.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(p.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	resp, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: image.PanoramaPrompt(scene),
		Model:  openai.ImageModel(p.model),
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize1536x1024,
	})
	if err != nil {
		return image.Panorama{}, fmt.Errorf("openai: generate image: %w", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return image.Panorama{}, image.ErrNoImage
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return image.Panorama{}, fmt.Errorf("openai: decode image payload: %w", err)
	}

	return image.Panorama{MIMEType: "image/png", Data: data}, nil
}
