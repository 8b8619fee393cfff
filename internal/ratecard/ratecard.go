// Package ratecard reads agency rate cards from YAML, JSON or TOML files and
// reloads them when the file changes.
package ratecard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/sow-workbench/internal/sow"
)

// File is the on-disk shape:
//
//	roles:
//	  - name: Project Manager
//	    rate: 180
type File struct {
	Roles []sow.RateCardItem `json:"roles" yaml:"roles" toml:"roles"`
}

// Load reads and validates the rate card at path. The format follows the
// extension (.yaml, .yml, .json, .toml). YAML and JSON files may also hold a
// bare list of entries.
func Load(path string) ([]sow.RateCardItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate card: %w", err)
	}
	items, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// Parse decodes data in the format named by ext.
func Parse(data []byte, ext string) ([]sow.RateCardItem, error) {
	var (
		f   File
		err error
	)
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		err = decodeYAML(data, &f)
	case "json":
		err = decodeJSON(data, &f)
	case "toml":
		_, err = toml.Decode(string(data), &f)
	default:
		return nil, fmt.Errorf("unsupported rate card format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode rate card: %w", err)
	}
	return validate(f.Roles)
}

func decodeYAML(data []byte, f *File) error {
	var list []sow.RateCardItem
	if err := yaml.Unmarshal(data, &list); err == nil {
		f.Roles = list
		return nil
	}
	return yaml.Unmarshal(data, f)
}

func decodeJSON(data []byte, f *File) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &f.Roles)
	}
	return json.Unmarshal(data, f)
}

func validate(items []sow.RateCardItem) ([]sow.RateCardItem, error) {
	out := make([]sow.RateCardItem, 0, len(items))
	for i, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" {
			return nil, fmt.Errorf("entry %d: name is required", i+1)
		}
		if math.IsNaN(it.Rate) || math.IsInf(it.Rate, 0) || it.Rate <= 0 {
			return nil, fmt.Errorf("entry %d (%s): rate must be a positive number", i+1, it.Name)
		}
		out = append(out, it)
	}
	return out, nil
}
