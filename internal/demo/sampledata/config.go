// Package sampledata generates seeded demo workbooks (vendor assessments or
// a risk register) and optionally uploads them to a running API.
package sampledata

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

const (
	KindVendors = "vendors"
	KindRisks   = "risks"
)

type Config struct {
	Kind        string
	Rows        int
	Seed        int64
	Output      string
	Upload      bool
	DatasetName string
	APIBaseURL  string
	APIKey      string
	HTTPTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Kind:        KindVendors,
		Rows:        2000,
		Seed:        time.Now().UTC().UnixNano(),
		Output:      "",
		Upload:      false,
		APIBaseURL:  "http://localhost:8080",
		HTTPTimeout: 30 * time.Second,
	}
}

// DefaultFileName is the workbook name used when neither an output path
// nor a dataset name is configured.
func DefaultFileName(kind string) string {
	if kind == KindRisks {
		return "sample_risks.xlsx"
	}
	return "sample_tprm_assessments.xlsx"
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "SHEETSENSE_SAMPLE_KIND", &cfg.Kind); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SHEETSENSE_SAMPLE_ROWS", &cfg.Rows); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "SHEETSENSE_SAMPLE_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHEETSENSE_SAMPLE_OUTPUT", &cfg.Output); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SHEETSENSE_SAMPLE_UPLOAD", &cfg.Upload); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHEETSENSE_SAMPLE_DATASET_NAME", &cfg.DatasetName); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHEETSENSE_API_URL", &cfg.APIBaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHEETSENSE_API_KEY", &cfg.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SHEETSENSE_SAMPLE_HTTP_TIMEOUT", &cfg.HTTPTimeout); err != nil {
		return Config{}, err
	}

	cfg.Kind = strings.ToLower(cfg.Kind)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Kind != KindVendors && c.Kind != KindRisks {
		return fmt.Errorf("SHEETSENSE_SAMPLE_KIND must be %q or %q", KindVendors, KindRisks)
	}
	if c.Rows <= 0 {
		return fmt.Errorf("SHEETSENSE_SAMPLE_ROWS must be > 0")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("SHEETSENSE_SAMPLE_HTTP_TIMEOUT must be > 0")
	}
	if c.Output == "" && !c.Upload {
		return fmt.Errorf("SHEETSENSE_SAMPLE_OUTPUT is required unless SHEETSENSE_SAMPLE_UPLOAD=true")
	}
	if c.Upload && strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("SHEETSENSE_API_URL is required when SHEETSENSE_SAMPLE_UPLOAD=true")
	}
	return nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
