package keybackend

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeyPair is a signing key id and its secret.
type KeyPair struct {
	ID     string `json:"id" yaml:"id" mapstructure:"id"`
	Secret string `json:"secret" yaml:"secret" mapstructure:"secret"`
}

// LoadKeysFromFile loads signing keys from a JSON or YAML file. Files ending
// in .yaml or .yml are read as YAML, anything else as JSON. Both hold a list:
//
//	[
//	  {"id": "2024-05", "secret": "c2VjcmV0..."},
//	  {"id": "2024-04", "secret": "b2xkZXI..."}
//	]
//
// Pairs with an empty id or secret are skipped.
func LoadKeysFromFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}

	var pairs []KeyPair
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &pairs)
	default:
		err = json.Unmarshal(data, &pairs)
	}
	if err != nil {
		return nil, fmt.Errorf("parse keys file: %w", err)
	}

	keys := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if p.ID != "" && p.Secret != "" {
			keys[p.ID] = p.Secret
		}
	}

	return keys, nil
}
