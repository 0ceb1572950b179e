package ridb

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 100_000
	kdfSaltBytes  = 16
	gcmNonceBytes = 12
	aesKeyBytes   = 32
)

// envelope is the at-rest encoding of an encrypted field value.
type envelope struct {
	IV string `json:"iv"`
	CT string `json:"ct"`
}

// deriveKey derives an AES-256 key from password and salt using
// PBKDF2-HMAC-SHA256.
func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, kdfIterations, aesKeyBytes, sha256.New)
}

// newEncryptionPlugin builds the built-in Encryption plugin for the
// given schema's EncryptedFields, deriving a per-database key from
// password and salt. Each encrypted field is sealed independently with
// AES-256-GCM under a fresh random nonce.
func newEncryptionPlugin(schema *Schema, password string, salt []byte) (*Plugin, error) {
	fields := schema.EncryptedFields()
	if len(fields) == 0 {
		return &Plugin{Name: "encryption"}, nil
	}

	key := deriveKey(password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &EncryptionError{Message: fmt.Sprintf("derive cipher: %s", err)}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &EncryptionError{Message: fmt.Sprintf("derive gcm: %s", err)}
	}

	return &Plugin{
		Name: "encryption",
		DocCreateHook: func(_ string, doc map[string]any) (map[string]any, error) {
			return sealFields(doc, fields, gcm)
		},
		DocRecoverHook: func(_ string, doc map[string]any) (map[string]any, error) {
			return openFields(doc, fields, gcm)
		},
	}, nil
}

func sealFields(doc map[string]any, fields []string, gcm cipher.AEAD) (map[string]any, error) {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for _, field := range fields {
		value, ok := out[field]
		if !ok || value == nil {
			continue
		}
		plaintext := []byte(fmt.Sprint(value))
		nonce := make([]byte, gcmNonceBytes)
		if _, err := rand.Read(nonce); err != nil {
			return nil, &EncryptionError{Field: field, Message: fmt.Sprintf("generate nonce: %s", err)}
		}
		ct := gcm.Seal(nil, nonce, plaintext, nil)
		out[field] = envelope{
			IV: base64.StdEncoding.EncodeToString(nonce),
			CT: base64.StdEncoding.EncodeToString(ct),
		}
	}
	return out, nil
}

func openFields(doc map[string]any, fields []string, gcm cipher.AEAD) (map[string]any, error) {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for _, field := range fields {
		raw, ok := out[field]
		if !ok || raw == nil {
			continue
		}
		env, err := asEnvelope(raw)
		if err != nil {
			return nil, &EncryptionError{Field: field, Message: err.Error()}
		}
		nonce, err := base64.StdEncoding.DecodeString(env.IV)
		if err != nil {
			return nil, &EncryptionError{Field: field, Message: fmt.Sprintf("decode iv: %s", err)}
		}
		ct, err := base64.StdEncoding.DecodeString(env.CT)
		if err != nil {
			return nil, &EncryptionError{Field: field, Message: fmt.Sprintf("decode ciphertext: %s", err)}
		}
		plaintext, err := gcm.Open(nil, nonce, ct, nil)
		if err != nil {
			return nil, &EncryptionError{Field: field, Message: "authentication failed"}
		}
		out[field] = string(plaintext)
	}
	return out, nil
}

func asEnvelope(raw any) (envelope, error) {
	switch v := raw.(type) {
	case envelope:
		return v, nil
	case map[string]any:
		iv, _ := v["iv"].(string)
		ct, _ := v["ct"].(string)
		if iv == "" || ct == "" {
			return envelope{}, fmt.Errorf("malformed encryption envelope")
		}
		return envelope{IV: iv, CT: ct}, nil
	default:
		return envelope{}, fmt.Errorf("malformed encryption envelope")
	}
}

// newSalt generates a fresh random per-database KDF salt.
func newSalt() ([]byte, error) {
	salt := make([]byte, kdfSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// saltStore is implemented by backends that can persist the
// per-database KDF salt as metadata, so that reopening the same
// database with the same password re-derives the same key. Backends
// that don't implement it (MemoryBackend) get a fresh salt every time,
// which is fine since their data never outlives the process.
type saltStore interface {
	LoadSalt(ctx context.Context) ([]byte, bool, error)
	SaveSalt(ctx context.Context, salt []byte) error
}

// resolveSalt returns backend's persisted salt, generating and saving
// one on first use. Backends that don't implement saltStore get an
// ephemeral salt each call.
func resolveSalt(ctx context.Context, backend StorageBackend) ([]byte, error) {
	store, ok := backend.(saltStore)
	if !ok {
		return newSalt()
	}

	salt, found, err := store.LoadSalt(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load salt: %s", ErrConfiguration, err)
	}
	if found {
		return salt, nil
	}

	salt, err = newSalt()
	if err != nil {
		return nil, fmt.Errorf("%w: generate salt: %s", ErrConfiguration, err)
	}
	if err := store.SaveSalt(ctx, salt); err != nil {
		return nil, fmt.Errorf("%w: persist salt: %s", ErrConfiguration, err)
	}
	return salt, nil
}
