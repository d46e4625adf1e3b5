package input

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a structured input document. The format follows the file
// suffix: .yaml/.yml or .json. JSON numbers keep their literal text so
// decimal fields see the exact value that was written.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file %q: %w", path, err)
	}

	out := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("parse input file %q: %w", path, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("parse input file %q: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("input file %q: unsupported format %q (use .yaml, .yml or .json)", path, filepath.Ext(path))
	}
	return out, nil
}
