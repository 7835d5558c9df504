package image

import "fmt"

// PanoramaPrompt wraps a scene description in the full rendering brief shared
// by all providers. The technical constraints keep the output usable as a
// seamless VR skybox regardless of which model renders it.
func PanoramaPrompt(scene string) string {
	return fmt.Sprintf(`Generate a photorealistic 360-degree equirectangular panorama designed for VR viewing.
Scene: %s.
Technical requirements:
- Output must be a single seamless equirectangular panorama (2:1 aspect ratio).
- Camera position at average human eye level (approximately 1.6 meters).
- Perspective must feel natural when viewed from the center of the scene.
- No camera tilt, no fisheye distortion.
- Left and right edges must align perfectly for seamless looping.
- Lighting should be realistic indoor daylight.
- Image must be sharp and clear across the entire panorama.
Content requirements:
- Floor, walls, ceiling fully visible to avoid black or empty areas.
- No exaggerated features, text, watermarks, logos, or branding.
- Style: Photorealistic, Real-world scale, Neutral, everyday atmosphere.`, scene)
}
