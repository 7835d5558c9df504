// Package mock provides a test double for the image package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/verbascape/verbascape/pkg/provider/image"
)

// GenerateCall records a single invocation of Provider.GeneratePanorama.
type GenerateCall struct {
	// Scene is the scene description passed to GeneratePanorama.
	Scene string
}

// Provider is a mock implementation of image.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by GeneratePanorama when GenerateErr is nil.
	Result image.Panorama

	// GenerateErr, if non-nil, is returned by every GeneratePanorama call.
	GenerateErr error

	// GenerateCalls records every call to GeneratePanorama in order.
	GenerateCalls []GenerateCall
}

// GeneratePanorama records the call and returns Result, GenerateErr.
func (p *Provider) GeneratePanorama(_ context.Context, scene string) (image.Panorama, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Scene: scene})
	if p.GenerateErr != nil {
		return image.Panorama{}, p.GenerateErr
	}
	return p.Result, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = nil
}

// Ensure Provider implements image.Provider at compile time.
var _ image.Provider = (*Provider)(nil)
