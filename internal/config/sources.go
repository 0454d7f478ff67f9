package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed sources.default.yaml
var defaultSources []byte

// Sources describes which marketplaces are polled and with which
// credentials. Missing credentials disable a source, they are not fatal.
type Sources struct {
	Hotmart      HotmartSource      `yaml:"hotmart"`
	MercadoLibre MercadoLibreSource `yaml:"mercadolibre"`
	Amazon       AmazonSource       `yaml:"amazon"`
}

type HotmartSource struct {
	Enabled      bool   `yaml:"enabled"`
	BaseURL      string `yaml:"base_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Basic        string `yaml:"basic"`
	// Affiliate requests affiliation through the Hotmart API.
	Affiliate bool `yaml:"affiliate"`
}

type MercadoLibreSource struct {
	Enabled      bool     `yaml:"enabled"`
	BaseURL      string   `yaml:"base_url"`
	Site         string   `yaml:"site"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Queries      []string `yaml:"queries"`
}

type AmazonSource struct {
	Enabled    bool     `yaml:"enabled"`
	Currency   string   `yaml:"currency"`
	Host       string   `yaml:"host"`
	PartnerTag string   `yaml:"partner_tag"`
	Pages      []string `yaml:"pages"`
}

// LoadSources reads path, or the embedded default when path is empty.
func LoadSources(path string) (*Sources, error) {
	data := defaultSources
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read sources file: %w", err)
		}
		data = raw
	}
	return ParseSources(data)
}

// ParseSources expands environment references and decodes the YAML.
func ParseSources(data []byte) (*Sources, error) {
	var s Sources
	if err := yaml.Unmarshal(expandEnv(data), &s); err != nil {
		return nil, fmt.Errorf("failed to parse sources yaml: %w", err)
	}
	return &s, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandEnv replaces ${VAR} and ${VAR:-default}. Unset variables without a
// default become empty strings.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		parts := envRef.FindSubmatch(m)
		if v := os.Getenv(string(parts[1])); v != "" {
			return []byte(v)
		}
		return parts[2]
	})
}
