package application

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"garderie-cloud/internal/identity"
	releve "garderie-cloud/internal/releve/domain"
)

// AddressConfig is the provider's mailing address as configured.
type AddressConfig struct {
	Line1      string `yaml:"line1"`
	City       string `yaml:"city"`
	Province   string `yaml:"province"`
	PostalCode string `yaml:"postal_code"`
}

// Config carries the provider and preparer identity consumed by a batch run.
// It is loaded once at batch start and validated up front; the pipeline never
// re-fetches individual settings.
type Config struct {
	ProviderName    string        `yaml:"provider_name"`
	ProviderNEQ     string        `yaml:"provider_neq"`
	ProviderAddress AddressConfig `yaml:"provider_address"`
	PreparerID      string        `yaml:"preparer_id"`

	// OutputRoot is the base directory for transmission artifacts; files
	// land under OutputRoot/<tax year>/.
	OutputRoot string `yaml:"output_root"`
}

// LoadConfig reads the YAML file at path when set (or RL24_CONFIG), then
// applies env-var fallbacks for fields the file leaves empty.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("RL24_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if cfg.ProviderName == "" {
		cfg.ProviderName = os.Getenv("RL24_PROVIDER_NAME")
	}
	if cfg.ProviderNEQ == "" {
		cfg.ProviderNEQ = os.Getenv("RL24_PROVIDER_NEQ")
	}
	if cfg.PreparerID == "" {
		cfg.PreparerID = os.Getenv("RL24_PREPARER_ID")
	}
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = os.Getenv("RL24_OUTPUT_ROOT")
	}
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = filepath.FromSlash("var/rl24")
	}
	return cfg, nil
}

// Validate returns every blocking configuration problem. A non-empty result
// aborts the batch before any write.
func (c Config) Validate() []string {
	var problems []string
	if strings.TrimSpace(c.ProviderName) == "" {
		problems = append(problems, "provider legal name is required")
	}
	if !identity.ValidateNEQ(c.ProviderNEQ) {
		problems = append(problems, fmt.Sprintf("provider NEQ %q is not a 10-digit registration number", c.ProviderNEQ))
	}
	preparer := strings.TrimSpace(c.PreparerID)
	if preparer == "" {
		problems = append(problems, "preparer id is required")
	} else if len(preparer) > releve.FilenamePreparerWidth {
		problems = append(problems, fmt.Sprintf("preparer id %q exceeds %d characters", preparer, releve.FilenamePreparerWidth))
	}
	if strings.TrimSpace(c.OutputRoot) == "" {
		problems = append(problems, "output root directory is required")
	}
	return problems
}

// Address converts the configured address into the domain shape.
func (c Config) Address() releve.Address {
	return releve.Address{
		Line1:      c.ProviderAddress.Line1,
		City:       c.ProviderAddress.City,
		Province:   c.ProviderAddress.Province,
		PostalCode: c.ProviderAddress.PostalCode,
	}
}
