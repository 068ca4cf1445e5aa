package sealer

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	scheme = "xc20p1"

	saltLen = 16
	keyLen  = chacha20poly1305.KeySize

	maxMemoryKiB   = 256 * 1024
	maxIterations  = 10
	maxParallelism = 16
)

// Sealer encrypts and decrypts short secrets with a key derived from fixed key material.
// It is safe for concurrent use.
type Sealer struct {
	material []byte
	params   Params
}

// New constructs a Sealer. The key material is copied.
func New(material []byte, params Params) (*Sealer, error) {
	if len(material) == 0 {
		return nil, ErrKeyMissing
	}
	if len(material) < MinKeyBytes {
		return nil, ErrKeyTooShort
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Sealer{
		material: append([]byte(nil), material...),
		params:   params,
	}, nil
}

// Encrypt seals plaintext bound to aad and returns the encoded ciphertext.
func (s *Sealer) Encrypt(plaintext, aad []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.derive(salt, s.params))
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, aad)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$%s$m=%d,t=%d,p=%d$%s$%s",
		scheme,
		s.params.MemoryKiB,
		s.params.Iterations,
		s.params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(sealed),
	), nil
}

// Decrypt opens a ciphertext produced by Encrypt with the same key material and aad.
// Returns ErrInvalidCiphertext for malformed input and ErrDecrypt when
// authentication fails (wrong key, wrong aad or tampering).
func (s *Sealer) Decrypt(ciphertext string, aad []byte) ([]byte, error) {
	params, salt, sealed, err := decode(ciphertext)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(s.derive(salt, params))
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrInvalidCiphertext
	}

	nonce, body := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, body, aad)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

func (s *Sealer) derive(salt []byte, p Params) []byte {
	return argon2.IDKey(s.material, salt, p.Iterations, p.MemoryKiB, p.Parallelism, keyLen)
}

// decode parses $xc20p1$m=..,t=..,p=..$<salt>$<sealed>.
func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" || parts[1] != scheme {
		return Params{}, nil, nil, ErrInvalidCiphertext
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Params{}, nil, nil, ErrInvalidCiphertext
	}
	if par == 0 || par > maxParallelism {
		return Params{}, nil, nil, ErrInvalidCiphertext
	}
	p := Params{MemoryKiB: mem, Iterations: it, Parallelism: uint8(par)} // #nosec G115 -- bounded above.
	if p.validate() != nil {
		return Params{}, nil, nil, ErrInvalidCiphertext
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[3])
	if err != nil || len(salt) != saltLen {
		return Params{}, nil, nil, ErrInvalidCiphertext
	}
	sealed, err := b64.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidCiphertext
	}
	return p, salt, sealed, nil
}
