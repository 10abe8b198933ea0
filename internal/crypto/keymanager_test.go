package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("pp-lightning-key-123", "hunter2")
	require.NoError(t, err)

	key, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "pp-lightning-key-123", key)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey("pp-lightning-key-123", "hunter2")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestEncryptKeyValidation(t *testing.T) {
	_, err := EncryptKey("key", "")
	assert.Error(t, err)

	_, err = EncryptKey("  ", "pw")
	assert.Error(t, err)
}

func TestLoadAPIKeyResolutionOrder(t *testing.T) {
	blob, err := EncryptKey("from-file", "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	// Raw key wins even when a file is configured.
	key, err := LoadAPIKey(KeyConfig{RawKey: "raw", EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "raw", key)

	key, err = LoadAPIKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "from-file", key)

	_, err = LoadAPIKey(KeyConfig{})
	assert.Error(t, err)
}
