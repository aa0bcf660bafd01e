package titles

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads and validates a YAML title-rules file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("title rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("title rules: %w", err)
	}
	for i, r := range f.Rules {
		if r.Domain == "" {
			return nil, fmt.Errorf("title rules: rule[%d] missing domain", i)
		}
	}
	return f.Rules, nil
}

// Load builds a cleaner from a YAML rules file. An empty path yields the
// built-in defaults.
func Load(path string) (*Cleaner, error) {
	if path == "" {
		return Default(), nil
	}
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return New(rules), nil
}
