package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	recordKey     = "current"
	schemaVersion = 1
)

// Record is the cached session. Secret is plaintext here; it is only
// encrypted on its way to the backend.
type Record struct {
	ID          string
	Email       string
	DisplayName string
	AvatarRef   string
	Secret      string
}

// persisted is the at-rest layout. Secret holds the ciphertext.
type persisted struct {
	Version     int    `json:"v"`
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
	Secret      string `json:"secret"`
}

func encodeRecord(r Record, ciphertext string) ([]byte, error) {
	return json.Marshal(persisted{
		Version:     schemaVersion,
		ID:          r.ID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		AvatarRef:   r.AvatarRef,
		Secret:      ciphertext,
	})
}

func decodeRecord(b []byte) (persisted, error) {
	var p persisted
	if err := json.Unmarshal(b, &p); err != nil {
		return persisted{}, err
	}
	if p.Version != schemaVersion {
		return persisted{}, fmt.Errorf("unsupported schema version %d", p.Version)
	}
	if strings.TrimSpace(p.ID) == "" || p.Secret == "" {
		return persisted{}, errors.New("missing id or secret")
	}
	return p, nil
}
