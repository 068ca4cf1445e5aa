package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Cipher is the encryption capability used for the secret.
// aad binds a ciphertext to the record that owns it.
type Cipher interface {
	Encrypt(plaintext, aad []byte) (string, error)
	Decrypt(ciphertext string, aad []byte) ([]byte, error)
}

// Store keeps exactly one session record on a Backend.
//
// Writers are expected to serialize Save and Clear themselves; the Store adds
// no ordering of its own.
type Store struct {
	backend Backend
	cipher  Cipher
	log     *slog.Logger
}

// New constructs a Store. The backend may be closed; it is opened on first use.
func New(backend Backend, cipher Cipher, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{backend: backend, cipher: cipher, log: log}
}

// Save encrypts the secret and replaces the stored record.
func (s *Store) Save(ctx context.Context, r Record) error {
	if strings.TrimSpace(r.ID) == "" || r.Secret == "" {
		return OpError{Op: "store.Save", Kind: ErrInvalidRecord}
	}

	ct, err := s.cipher.Encrypt([]byte(r.Secret), []byte(r.ID))
	if err != nil {
		return OpError{Op: "store.Save", Kind: ErrEncryption, Err: err}
	}
	b, err := encodeRecord(r, ct)
	if err != nil {
		return OpError{Op: "store.Save", Kind: ErrStorage, Err: err}
	}

	if err := s.withRetry(ctx, "store.Save", func(ctx context.Context) error {
		return s.backend.Put(ctx, recordKey, b)
	}); err != nil {
		return OpError{Op: "store.Save", Kind: ErrStorage, Err: err}
	}

	s.log.Debug("store.save.ok", "user_id", r.ID)
	return nil
}

// Load returns the stored record with the secret decrypted, or nil when no
// record exists. A record that cannot be decoded or decrypted yields nil and an
// error matching ErrUnreadable (and ErrEncryption for crypto failures).
func (s *Store) Load(ctx context.Context) (*Record, error) {
	var raw []byte
	err := s.withRetry(ctx, "store.Load", func(ctx context.Context) error {
		b, err := s.backend.Get(ctx, recordKey)
		raw = b
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, OpError{Op: "store.Load", Kind: ErrStorage, Err: err}
	}

	p, err := decodeRecord(raw)
	if err != nil {
		s.log.Warn("store.load.unreadable", "reason", "decode", "err", err)
		return nil, OpError{Op: "store.Load", Kind: ErrUnreadable, Err: err}
	}

	secret, err := s.cipher.Decrypt(p.Secret, []byte(p.ID))
	if err != nil {
		s.log.Warn("store.load.unreadable", "reason", "decrypt", "err", err)
		return nil, OpError{Op: "store.Load", Kind: ErrUnreadable, Err: fmt.Errorf("%w: %w", ErrEncryption, err)}
	}

	return &Record{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		AvatarRef:   p.AvatarRef,
		Secret:      string(secret),
	}, nil
}

// Clear removes the stored record. Clearing an empty store succeeds.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.withRetry(ctx, "store.Clear", func(ctx context.Context) error {
		return s.backend.Delete(ctx, recordKey)
	}); err != nil {
		return OpError{Op: "store.Clear", Kind: ErrStorage, Err: err}
	}
	s.log.Debug("store.clear.ok")
	return nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// withRetry opens the backend if needed and, if fn reports ErrClosed, reopens
// once and retries once. It never loops further.
func (s *Store) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	if !s.backend.IsOpen() {
		if err := s.backend.Open(ctx); err != nil {
			return fmt.Errorf("open: %w", err)
		}
	}

	err := fn(ctx)
	if !errors.Is(err, ErrClosed) {
		return err
	}

	s.log.Warn("store.reopen", "op", op)
	if err := s.backend.Open(ctx); err != nil {
		return fmt.Errorf("reopen: %w", err)
	}
	return fn(ctx)
}
