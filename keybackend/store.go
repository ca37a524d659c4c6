package keybackend

import (
	"errors"
	"fmt"
)

// KeysConfig holds configuration for loading signing keys.
type KeysConfig struct {
	Active string    `mapstructure:"active" yaml:"active"` // Key id used to sign new URLs and sessions
	Inline []KeyPair `mapstructure:"inline" yaml:"inline"` // Inline key pairs from config
	File   string    `mapstructure:"file" yaml:"file"`     // Path to a JSON or YAML key file
}

// NewSecretStore merges inline and file keys into one store. File keys win
// on duplicate ids. Older keys stay listed so URLs and cookies they signed
// still verify after the active key rotates.
func NewSecretStore(cfg KeysConfig) (*MapSecretStore, error) {
	keys := make(map[string]string)

	for _, p := range cfg.Inline {
		if p.ID != "" && p.Secret != "" {
			keys[p.ID] = p.Secret
		}
	}

	if cfg.File != "" {
		fileKeys, err := LoadKeysFromFile(cfg.File)
		if err != nil {
			return nil, err
		}
		for k, v := range fileKeys {
			keys[k] = v
		}
	}

	if cfg.Active == "" {
		return nil, errors.New("keys: no active key id configured")
	}
	if _, ok := keys[cfg.Active]; !ok {
		return nil, fmt.Errorf("keys: active key %q: %w", cfg.Active, ErrKeyNotFound)
	}

	return NewMapSecretStore(keys), nil
}
