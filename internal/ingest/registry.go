package ingest

import (
	"embed"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// SourceConfig defines the upstream open-data source for ingestion.
type SourceConfig struct {
	DatasetURL      string   `yaml:"dataset_url"`
	AppToken        string   `yaml:"app_token,omitempty"` // Socrata X-App-Token, optional
	PageSize        int      `yaml:"page_size,omitempty"` // Default: 50
	TimeoutSeconds  int      `yaml:"timeout_seconds,omitempty"`
	CacheTTLMinutes int      `yaml:"cache_ttl_minutes,omitempty"`
	OpenPhases      []string `yaml:"open_phases"` // phases considered "open for submission"
}

func (c *SourceConfig) applyDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.CacheTTLMinutes <= 0 {
		c.CacheTTLMinutes = 5
	}
}

// LoadSourceConfig reads the embedded sources.yaml, or the file at path when
// one is given (local development override).
func LoadSourceConfig(path string) (*SourceConfig, error) {
	var data []byte
	var err error
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	}
	if err != nil {
		return nil, err
	}

	// Expand environment variables within the YAML content (e.g. ${SOCRATA_APP_TOKEN})
	expanded := os.ExpandEnv(string(data))

	var cfg SourceConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}
