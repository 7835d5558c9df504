package config_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/verbascape/verbascape/internal/config"
	"github.com/verbascape/verbascape/pkg/provider/image"
	imagemock "github.com/verbascape/verbascape/pkg/provider/image/mock"
	"github.com/verbascape/verbascape/pkg/provider/live"
	livemock "github.com/verbascape/verbascape/pkg/provider/live/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: info

providers:
  live:
    name: gemini-live
    api_key: gk-test
    model: gemini-2.5-flash-native-audio-preview-12-2025
  image:
    name: gemini-image
    api_key: gk-test
    model: gemini-3-pro-image-preview

tutor:
  instructions: A friendly English tutor who keeps answers short.
  voice: Zephyr
  scene: a cozy cafe in Paris on a rainy afternoon

audio:
  block_size: 4096
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Providers.Live.Name != "gemini-live" {
		t.Errorf("providers.live.name: got %q, want %q", cfg.Providers.Live.Name, "gemini-live")
	}
	if cfg.Providers.Image.Name != "gemini-image" {
		t.Errorf("providers.image.name: got %q, want %q", cfg.Providers.Image.Name, "gemini-image")
	}
	if cfg.Tutor.Voice != "Zephyr" {
		t.Errorf("tutor.voice: got %q, want %q", cfg.Tutor.Voice, "Zephyr")
	}
	if !strings.Contains(cfg.Tutor.Scene, "Paris") {
		t.Errorf("tutor.scene: got %q", cfg.Tutor.Scene)
	}
	if cfg.Audio.BlockSize != 4096 {
		t.Errorf("audio.block_size: got %d, want 4096", cfg.Audio.BlockSize)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	// An empty config should succeed (no required top-level fields).
	_, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := `
server:
  listen_addr: ":8080"
  log_levle: info
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_InvalidLogLevel(t *testing.T) {
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	yaml := `
server:
  tls:
    cert_file: /etc/verbascape/tls.crt
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing key_file, got nil")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestValidate_NegativeBlockSize(t *testing.T) {
	yaml := `
audio:
  block_size: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative block_size, got nil")
	}
	if !strings.Contains(err.Error(), "block_size") {
		t.Errorf("error should mention block_size, got: %v", err)
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_UnknownLive(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateLive(config.ProviderEntry{Name: "nonexistent"})
	if err == nil {
		t.Fatal("expected error for unknown live provider")
	}
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_UnknownImage(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateImage(config.ProviderEntry{Name: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_RegisteredLive(t *testing.T) {
	reg := config.NewRegistry()
	want := &livemock.Provider{}
	reg.RegisterLive("stub", func(e config.ProviderEntry) (live.Provider, error) {
		return want, nil
	})
	got, err := reg.CreateLive(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_RegisteredImage(t *testing.T) {
	reg := config.NewRegistry()
	want := &imagemock.Provider{}
	reg.RegisterImage("stub", func(e config.ProviderEntry) (image.Provider, error) {
		return want, nil
	})
	got, err := reg.CreateImage(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterLive("broken", func(e config.ProviderEntry) (live.Provider, error) {
		return nil, wantErr
	})
	_, err := reg.CreateLive(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

func TestRegistry_FactoryReceivesEntry(t *testing.T) {
	reg := config.NewRegistry()
	var gotEntry config.ProviderEntry
	reg.RegisterLive("capture", func(e config.ProviderEntry) (live.Provider, error) {
		gotEntry = e
		return &livemock.Provider{}, nil
	})
	entry := config.ProviderEntry{Name: "capture", APIKey: "key", Model: "m"}
	if _, err := reg.CreateLive(entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotEntry.APIKey != "key" || gotEntry.Model != "m" {
		t.Errorf("factory received %+v; want %+v", gotEntry, entry)
	}
}
