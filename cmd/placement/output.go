package main

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// encode prints v in the selected format. YAML output goes through JSON first
// so both formats share the JSON field names.
func (a *app) encode(v any) error {
	if a.format == formatYAML {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("error encoding output: %w", err)
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("error encoding output: %w", err)
		}
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	}

	e := json.NewEncoder(a.out)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
