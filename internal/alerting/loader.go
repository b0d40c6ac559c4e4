package alerting

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// thresholdsFile is the YAML layout of a standalone thresholds file.
type thresholdsFile struct {
	Thresholds Thresholds `yaml:"thresholds"`
}

// LoadThresholdsFromFile loads thresholds from a YAML file.
func LoadThresholdsFromFile(path string) (Thresholds, error) {
	f, err := os.Open(path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("failed to open thresholds file: %w", err)
	}
	defer f.Close()

	return LoadThresholds(f)
}

// LoadThresholds loads thresholds from a reader.
// Limits missing from the document keep their default values.
func LoadThresholds(r io.Reader) (Thresholds, error) {
	cfg := thresholdsFile{Thresholds: DefaultThresholds()}
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return Thresholds{}, fmt.Errorf("failed to parse thresholds YAML: %w", err)
	}

	if err := cfg.Thresholds.Validate(); err != nil {
		return Thresholds{}, fmt.Errorf("invalid thresholds: %w", err)
	}
	return cfg.Thresholds, nil
}
