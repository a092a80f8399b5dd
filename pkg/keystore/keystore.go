package keystore

import (
	"encoding/json"

	"github.com/pkg/errors"
	keystorev4 "github.com/wealdtech/go-eth2-wallet-encryptor-keystorev4"
)

// ErrDecryption is returned when a keystore blob cannot be decrypted
var ErrDecryption = errors.New("failed to decrypt keystore")

// Keystore is an EIP-2335 style envelope around an encrypted payload
type Keystore struct {
	Crypto  map[string]interface{} `json:"crypto"`
	Version uint                   `json:"version"`
}

// IsEncrypted reports whether data looks like a keystore envelope.
func IsEncrypted(data []byte) bool {
	var probe struct {
		Crypto json.RawMessage `json:"crypto"`
	}

	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}

	return len(probe.Crypto) > 0 && string(probe.Crypto) != "null"
}

// Decrypt decrypts a keystore JSON blob with passphrase.
func Decrypt(data []byte, passphrase string) ([]byte, error) {
	var ks Keystore
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, errors.Wrapf(ErrDecryption, "invalid keystore json: %v", err)
	}

	if ks.Crypto == nil {
		return nil, errors.Wrap(ErrDecryption, "keystore has no crypto section")
	}

	plaintext, err := keystorev4.New().Decrypt(ks.Crypto, passphrase)
	if err != nil {
		return nil, errors.Wrapf(ErrDecryption, "%v", err)
	}

	return plaintext, nil
}

// Encrypt wraps plaintext into a keystore JSON blob using pbkdf2.
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	crypto, err := keystorev4.New(keystorev4.WithCipher("pbkdf2")).Encrypt(plaintext, passphrase)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encrypt payload")
	}

	return json.Marshal(&Keystore{
		Crypto:  crypto,
		Version: 4,
	})
}
