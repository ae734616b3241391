package application

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		ProviderName: "Garderie Les Petits Pas",
		ProviderNEQ:  "1234567890",
		ProviderAddress: AddressConfig{
			Line1:      "100 rue Principale",
			City:       "Montréal",
			Province:   "QC",
			PostalCode: "H2X 1Y6",
		},
		PreparerID: "123456",
		OutputRoot: "var/rl24",
	}
}

func TestConfigValidate(t *testing.T) {
	if problems := validConfig().Validate(); len(problems) != 0 {
		t.Fatalf("valid config rejected: %v", problems)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing name", func(c *Config) { c.ProviderName = " " }, "legal name"},
		{"bad neq", func(c *Config) { c.ProviderNEQ = "12345" }, "NEQ"},
		{"missing preparer", func(c *Config) { c.PreparerID = "" }, "preparer"},
		{"long preparer", func(c *Config) { c.PreparerID = "1234567" }, "preparer"},
		{"missing output root", func(c *Config) { c.OutputRoot = "" }, "output root"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			problems := cfg.Validate()
			if len(problems) != 1 || !strings.Contains(problems[0], tc.want) {
				t.Fatalf("problems = %v, want one mentioning %q", problems, tc.want)
			}
		})
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rl24.yaml")
	content := `
provider_name: Garderie Les Petits Pas
provider_neq: "1234567890"
provider_address:
  line1: 100 rue Principale
  city: Montréal
  province: QC
  postal_code: H2X 1Y6
preparer_id: "123456"
output_root: /srv/rl24
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ProviderNEQ != "1234567890" || cfg.PreparerID != "123456" || cfg.OutputRoot != "/srv/rl24" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if problems := cfg.Validate(); len(problems) != 0 {
		t.Fatalf("loaded config invalid: %v", problems)
	}
}

func TestLoadConfigEnvFallback(t *testing.T) {
	t.Setenv("RL24_CONFIG", "")
	t.Setenv("RL24_PROVIDER_NAME", "Garderie Soleil")
	t.Setenv("RL24_PROVIDER_NEQ", "9876543210")
	t.Setenv("RL24_PREPARER_ID", "654321")
	t.Setenv("RL24_OUTPUT_ROOT", "")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ProviderName != "Garderie Soleil" || cfg.ProviderNEQ != "9876543210" {
		t.Fatalf("env fallback not applied: %+v", cfg)
	}
	if cfg.OutputRoot == "" {
		t.Fatal("output root must default when unset")
	}
}
