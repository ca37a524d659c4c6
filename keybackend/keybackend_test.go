package keybackend_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sagarc03/guestbook"
	"github.com/sagarc03/guestbook/keybackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeysFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestMapSecretStore_Lookup(t *testing.T) {
	t.Parallel()

	store := keybackend.NewMapSecretStore(map[string]string{"k1": "s1"})

	secret, err := store.Lookup("k1")
	require.NoError(t, err)
	assert.Equal(t, "s1", secret)

	_, err = store.Lookup("k2")
	assert.ErrorIs(t, err, keybackend.ErrKeyNotFound)
	assert.ErrorIs(t, err, guestbook.ErrNotFound)

	_, err = keybackend.NewMapSecretStore(nil).Lookup("k1")
	assert.ErrorIs(t, err, keybackend.ErrKeyNotFound)
}

func TestLoadKeysFromFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
		want    map[string]string
		wantErr string
	}{
		{
			name:    "json",
			file:    "keys.json",
			content: `[{"id": "a", "secret": "sa"}, {"id": "b", "secret": "sb"}]`,
			want:    map[string]string{"a": "sa", "b": "sb"},
		},
		{
			name:    "yaml",
			file:    "keys.yaml",
			content: "- id: a\n  secret: sa\n- id: b\n  secret: \"s/with+chars=\"\n",
			want:    map[string]string{"a": "sa", "b": "s/with+chars="},
		},
		{
			name:    "skips empty pairs and last duplicate wins",
			file:    "keys.json",
			content: `[{"id": "", "secret": "x"}, {"id": "y", "secret": ""}, {"id": "d", "secret": "1"}, {"id": "d", "secret": "2"}]`,
			want:    map[string]string{"d": "2"},
		},
		{
			name:    "object instead of list",
			file:    "keys.json",
			content: `{"id": "a", "secret": "b"}`,
			wantErr: "parse keys file",
		},
		{
			name:    "malformed yaml",
			file:    "keys.yml",
			content: "- id: [",
			wantErr: "parse keys file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			keys, err := keybackend.LoadKeysFromFile(writeKeysFile(t, tt.file, tt.content))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := keybackend.LoadKeysFromFile("/nonexistent/keys.json")
		assert.ErrorContains(t, err, "read keys file")
	})
}

func TestNewSecretStore(t *testing.T) {
	t.Parallel()

	t.Run("file overrides inline", func(t *testing.T) {
		t.Parallel()

		path := writeKeysFile(t, "keys.json", `[{"id": "dup", "secret": "file"}, {"id": "new", "secret": "n"}]`)
		store, err := keybackend.NewSecretStore(keybackend.KeysConfig{
			Active: "new",
			Inline: []keybackend.KeyPair{{ID: "dup", Secret: "inline"}, {ID: "old", Secret: "o"}},
			File:   path,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, store.Len())

		secret, err := store.Lookup("dup")
		require.NoError(t, err)
		assert.Equal(t, "file", secret)

		secret, err = store.Lookup("old")
		require.NoError(t, err)
		assert.Equal(t, "o", secret)
	})

	t.Run("no active key", func(t *testing.T) {
		t.Parallel()
		_, err := keybackend.NewSecretStore(keybackend.KeysConfig{
			Inline: []keybackend.KeyPair{{ID: "a", Secret: "s"}},
		})
		assert.ErrorContains(t, err, "no active key")
	})

	t.Run("active key missing", func(t *testing.T) {
		t.Parallel()
		_, err := keybackend.NewSecretStore(keybackend.KeysConfig{
			Active: "b",
			Inline: []keybackend.KeyPair{{ID: "a", Secret: "s"}},
		})
		assert.ErrorIs(t, err, keybackend.ErrKeyNotFound)
	})

	t.Run("bad file", func(t *testing.T) {
		t.Parallel()
		_, err := keybackend.NewSecretStore(keybackend.KeysConfig{Active: "a", File: "/nonexistent/keys.json"})
		assert.ErrorContains(t, err, "read keys file")
	})

	t.Run("works as upload signer store", func(t *testing.T) {
		t.Parallel()
		store, err := keybackend.NewSecretStore(keybackend.KeysConfig{
			Active: "a",
			Inline: []keybackend.KeyPair{{ID: "a", Secret: "s"}},
		})
		require.NoError(t, err)

		signer := guestbook.NewUploadSigner(store, "a")
		q, err := signer.Sign("POST", "/_ah/upload/x", 10*time.Minute)
		require.NoError(t, err)
		assert.NoError(t, signer.Verify("POST", "/_ah/upload/x", q))
	})
}
