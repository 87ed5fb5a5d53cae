package splitter

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts the policy names plus a few spellings people actually type:
//
//	duplicates: error
//	duplicates: last-write-wins   # also last_write_wins, last
func (p *DuplicatePolicy) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duplicates: expected a scalar")
	}
	parsed, err := ParseDuplicatePolicy(value.Value)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return DuplicatesError, nil
	case "last-write-wins", "last_write_wins", "last":
		return DuplicatesLastWriteWins, nil
	default:
		return "", fmt.Errorf("unknown duplicates policy %q (want error or last-write-wins)", s)
	}
}

type FileConfig struct {
	// Ledger database path. Empty disables the ledger.
	DB    string `yaml:"db"`
	Debug bool   `yaml:"debug"`

	// When true, an event that references a missing row is logged and skipped instead
	// of aborting the run.
	SkipDangling bool `yaml:"skip_dangling"`

	Duplicates DuplicatePolicy `yaml:"duplicates"`

	// gzip level for output files; 0 means the library default.
	GzipLevel int `yaml:"gzip_level"`

	// Coinc definition whose events are split out. Defaults to InspiralCoincDef.
	CoincDef *CoincDef `yaml:"coinc_def"`
}

func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
