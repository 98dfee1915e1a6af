package scenariodef

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type scenarioFile struct {
	Scenarios []Scenario `json:"scenarios"`
}

// LoadScenarioFile reads scenarios from a .yaml, .yml or .json file. The file may hold a
// single scenario, a list of scenarios, or an object with a "scenarios" list.
func LoadScenarioFile(path string) ([]Scenario, error) {
	data, err := readAsJSON(path)
	if err != nil {
		return nil, err
	}
	scenarios, err := ParseScenarios(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}

// ParseScenarios decodes scenarios from JSON and validates them.
func ParseScenarios(data []byte) ([]Scenario, error) {
	var scenarios []Scenario
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(trimmed, []byte("[")):
		if err := json.Unmarshal(trimmed, &scenarios); err != nil {
			return nil, err
		}
	default:
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return nil, err
		}
		if _, ok := probe["scenarios"]; ok {
			var f scenarioFile
			if err := json.Unmarshal(trimmed, &f); err != nil {
				return nil, err
			}
			scenarios = f.Scenarios
		} else {
			var s Scenario
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return nil, err
			}
			scenarios = []Scenario{s}
		}
	}
	seen := make(map[string]bool)
	for _, s := range scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate scenario id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return scenarios, nil
}

// LoadScenarios loads every scenario file named by paths. A directory contributes all of its
// .yaml, .yml and .json files in name order.
func LoadScenarios(paths ...string) ([]Scenario, error) {
	var all []Scenario
	seen := make(map[string]string)
	for _, p := range paths {
		files, err := expandPath(p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			scenarios, err := LoadScenarioFile(f)
			if err != nil {
				return nil, err
			}
			for _, s := range scenarios {
				if prev, ok := seen[s.ID]; ok {
					return nil, fmt.Errorf("scenario id %q is defined in both %s and %s", s.ID, prev, f)
				}
				seen[s.ID] = f
				all = append(all, s)
			}
		}
	}
	return all, nil
}

// LoadPlanFile reads and validates a load plan from a .yaml, .yml or .json file.
func LoadPlanFile(path string) (LoadPlan, error) {
	var plan LoadPlan
	data, err := readAsJSON(path)
	if err != nil {
		return plan, err
	}
	if err := json.Unmarshal(data, &plan); err != nil {
		return plan, fmt.Errorf("%s: %w", path, err)
	}
	if plan.Name == "" {
		plan.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := plan.Validate(); err != nil {
		return plan, fmt.Errorf("%s: %w", path, err)
	}
	return plan, nil
}

// IsDefinitionFile reports whether path has an extension the loaders accept.
func IsDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func expandPath(p string) ([]string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{p}, nil
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && IsDefinitionFile(e.Name()) {
			files = append(files, filepath.Join(p, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func readAsJSON(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return data, nil
	case ".yaml", ".yml":
		out, err := YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: unsupported file type", path)
	}
}

// YAMLToJSON converts a YAML document to JSON, so that the same JSON decoding (including
// ldvalue fields) applies to both formats.
func YAMLToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	normalized, err := normalizeYAML(doc)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

func normalizeYAML(v interface{}) (interface{}, error) {
	switch value := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(value))
		for k, item := range value {
			n, err := normalizeYAML(item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(value))
		for k, item := range value {
			n, err := normalizeYAML(item)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = n
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, item := range value {
			n, err := normalizeYAML(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return value, nil
	}
}
