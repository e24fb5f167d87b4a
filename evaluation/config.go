package evaluation

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Mode tags the phase a run belongs to. Only ModeTrain is treated specially:
// its run tables are split by epoch.
type Mode string

const (
	ModeTrain Mode = "train"
	ModeEval  Mode = "eval"
	ModeTest  Mode = "test"
)

// Config fixes what an Accumulator computes and where it writes. It is copied
// into the Accumulator at construction and not consulted again from outside.
type Config struct {
	// Root is the storage root; tables land in Root/CSVs. May be gs://.
	Root string `yaml:"sv_dir"`

	// Classes names the foreground classes in class-index order, without the
	// trailing Avg.
	Classes []string `yaml:"class_list"`

	// LabelConfig optionally points at an overlay JSON label map from which
	// Classes is filled when Classes is empty.
	LabelConfig string `yaml:"label_config,omitempty"`

	// Family toggles. They decide which columns are summarized.
	Registration bool `yaml:"calc_reg"`
	Segmentation bool `yaml:"calc_seg"`
	Displacement bool `yaml:"calc_disp"`

	Mode Mode `yaml:"mode"`
}

// DefaultConfig enables every family in train mode.
func DefaultConfig() Config {
	return Config{
		Root:         ".",
		Registration: true,
		Segmentation: true,
		Displacement: true,
		Mode:         ModeTrain,
	}
}

// LoadConfig reads a YAML config over the defaults. A missing file yields the
// defaults.
func LoadConfig(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return cfg, nil
	} else if err != nil {
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating the parent directory if needed.
func SaveConfig(cfg Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate reports configuration that would make every later call fail.
func (c Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("sv_dir must be set")
	}
	if len(c.Classes) == 0 {
		return fmt.Errorf("class_list must name at least one class")
	}
	if c.Mode == "" {
		return fmt.Errorf("mode must be set")
	}

	return nil
}

// RunTableName is the file that holds the per-sample rows for epoch.
func (c Config) RunTableName(epoch int) string {
	if c.Mode == ModeTrain {
		return fmt.Sprintf("%d_Results.csv", epoch)
	}

	return string(c.Mode) + "_Results.csv"
}

// SummaryTableName is the file that holds one summary row per run.
func (c Config) SummaryTableName() string {
	return string(c.Mode) + "Mean_Results.csv"
}
