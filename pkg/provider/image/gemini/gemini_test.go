package gemini_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/verbascape/verbascape/pkg/provider/image"
	"github.com/verbascape/verbascape/pkg/provider/image/gemini"
	"google.golang.org/genai"
)

// startGenerateServer launches a test HTTP server answering generateContent.
func startGenerateServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func testProvider(srv *httptest.Server) *gemini.Provider {
	return gemini.New("test-key", gemini.WithHTTPOptions(genai.HTTPOptions{BaseURL: srv.URL}))
}

func TestGeneratePanorama_ReturnsInlineImage(t *testing.T) {
	t.Parallel()

	wantBytes := []byte{0x89, 0x50, 0x4e, 0x47}
	var gotPath string
	var gotPrompt string

	srv := startGenerateServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil &&
			len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			gotPrompt = req.Contents[0].Parts[0].Text
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"parts": []map[string]any{
							{
								"inlineData": map[string]any{
									"mimeType": "image/png",
									"data":     base64.StdEncoding.EncodeToString(wantBytes),
								},
							},
						},
					},
				},
			},
		})
	})

	p := testProvider(srv)
	pano, err := p.GeneratePanorama(context.Background(), "a mountain cabin at dusk")
	if err != nil {
		t.Fatalf("GeneratePanorama: %v", err)
	}

	if string(pano.Data) != string(wantBytes) {
		t.Errorf("panorama data = %v; want %v", pano.Data, wantBytes)
	}
	if pano.MIMEType != "image/png" {
		t.Errorf("mime type = %q; want image/png", pano.MIMEType)
	}
	if !strings.Contains(gotPath, "generateContent") {
		t.Errorf("request path = %q; want generateContent endpoint", gotPath)
	}
	if !strings.Contains(gotPrompt, "a mountain cabin at dusk") {
		t.Errorf("request prompt does not embed the scene:\n%s", gotPrompt)
	}
}

func TestGeneratePanorama_UsesConfiguredModel(t *testing.T) {
	t.Parallel()

	var gotPath string

	srv := startGenerateServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"parts": []map[string]any{
							{"inlineData": map[string]any{"mimeType": "image/png", "data": "AA=="}},
						},
					},
				},
			},
		})
	})

	p := gemini.New("key",
		gemini.WithModel("custom-image-model"),
		gemini.WithHTTPOptions(genai.HTTPOptions{BaseURL: srv.URL}),
	)
	if _, err := p.GeneratePanorama(context.Background(), "scene"); err != nil {
		t.Fatalf("GeneratePanorama: %v", err)
	}
	if !strings.Contains(gotPath, "custom-image-model") {
		t.Errorf("request path = %q; want to contain custom-image-model", gotPath)
	}
}

func TestGeneratePanorama_TextOnlyResponse(t *testing.T) {
	t.Parallel()

	srv := startGenerateServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"parts": []map[string]any{
							{"text": "I cannot render that scene."},
						},
					},
				},
			},
		})
	})

	p := testProvider(srv)
	_, err := p.GeneratePanorama(context.Background(), "anything")
	if !errors.Is(err, image.ErrNoImage) {
		t.Errorf("err = %v; want ErrNoImage", err)
	}
}

func TestGeneratePanorama_ServerError(t *testing.T) {
	t.Parallel()

	srv := startGenerateServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":400,"message":"invalid argument"}}`, http.StatusBadRequest)
	})

	p := testProvider(srv)
	_, err := p.GeneratePanorama(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error from server failure")
	}
}
