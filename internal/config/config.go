// Package config provides the configuration schema, loader, and provider registry
// for the Verbascape tutoring server.
package config

// LogLevel controls log verbosity for the Verbascape server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Verbascape.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Tutor     TutorConfig     `yaml:"tutor"`
	Audio     AudioConfig     `yaml:"audio"`
}

// ServerConfig holds network and logging settings for the Verbascape server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// external capability. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	// Live selects the realtime conversation provider.
	Live ProviderEntry `yaml:"live"`

	// Image selects the panorama image generation provider.
	Image ProviderEntry `yaml:"image"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini-live").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "gpt-4o-realtime-preview").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// TutorConfig describes the tutoring persona spoken by the live provider.
type TutorConfig struct {
	// Instructions is a free-text persona description sent to the live
	// provider as the system instruction when a session opens.
	Instructions string `yaml:"instructions"`

	// Voice is the provider-specific voice name (e.g., "Zephyr").
	Voice string `yaml:"voice"`

	// Scene is the description used to generate the initial panorama
	// before any learner-requested scene change.
	Scene string `yaml:"scene"`
}

// AudioConfig holds capture tuning knobs.
type AudioConfig struct {
	// BlockSize is the number of samples read from the input device per
	// block. 0 selects the capture package default.
	BlockSize int `yaml:"block_size"`
}
