// Package config loads client configuration from a JSON file backend with
// COMPLYCHAT_* environment variable overrides.
package config

type Config struct {
	Backend BackendConfig
	Storage StorageConfig
	Log     LogConfig
}

// BackendConfig points the client at a ComplianceAI deployment.
// TimeoutSeconds bounds ordinary API calls; health and registration carry
// their own deadlines.
type BackendConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:        "https://complianceai-backend-ua6s.onrender.com/api/v1",
			TimeoutSeconds: 120,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/complychat/config.json, then applies COMPLYCHAT_*
// environment overrides on top.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}
