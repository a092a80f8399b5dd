package keystore

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte(`{"message":{"epoch":"194048","validator_index":"12"},"signature":"0xab"}`)

	blob, err := Encrypt(plaintext, "secret")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(blob))

	decrypted, err := Decrypt(blob, "secret")
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptErrors(t *testing.T) {
	blob, err := Encrypt([]byte("payload"), "secret")
	require.NoError(t, err)

	tests := []struct {
		name       string
		data       []byte
		passphrase string
	}{
		{name: "wrong passphrase", data: blob, passphrase: "other"},
		{name: "not json", data: []byte("nope"), passphrase: "secret"},
		{name: "no crypto", data: []byte(`{"version":4}`), passphrase: "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.data, tt.passphrase)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecryption))
		})
	}
}

func TestIsEncrypted(t *testing.T) {
	assert.False(t, IsEncrypted([]byte(`{"message":{},"signature":"0x"}`)))
	assert.False(t, IsEncrypted([]byte(`{"crypto":null}`)))
	assert.False(t, IsEncrypted([]byte(`[]`)))
	assert.True(t, IsEncrypted([]byte(`{"crypto":{"kdf":{}}}`)))
}
