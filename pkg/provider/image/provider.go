// Package image defines the provider-neutral contract for scene image
// generation.
//
// A Provider turns a plain-language scene description into a single
// equirectangular panorama suitable for VR viewing. Concrete implementations
// live in subpackages (gemini, openai); the mock subpackage provides a test
// double.
package image

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrNoImage is returned when the service responded successfully but produced
// no image payload.
var ErrNoImage = errors.New("image: no image data in response")

// Panorama is one generated scene image.
type Panorama struct {
	// MIMEType is the image media type, e.g. "image/png".
	MIMEType string
	// Data is the raw image bytes.
	Data []byte
}

// DataURL renders the panorama as an RFC 2397 data URL for direct embedding
// in a viewer.
func (p Panorama) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", p.MIMEType, base64.StdEncoding.EncodeToString(p.Data))
}

// Provider generates panoramas from scene descriptions.
type Provider interface {
	// GeneratePanorama renders the described scene as a 360-degree
	// equirectangular panorama. It blocks until the image is ready or ctx is
	// cancelled.
	GeneratePanorama(ctx context.Context, scene string) (Panorama, error)
}
