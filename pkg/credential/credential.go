// Package credential pairs an API key with the signer that authenticates it.
package credential

import (
	"errors"
	"fmt"

	"binconn/pkg/core"
	"binconn/pkg/signer"
)

// Credential is immutable after construction and safe to share between clients.
type Credential struct {
	apiKey string
	signer signer.Signer
}

// New creates a credential. A nil signer yields a key-only credential usable
// for API-key endpoints but not for signed ones.
func New(apiKey string, s signer.Signer) (*Credential, error) {
	if apiKey == "" {
		return nil, errors.New("api key is empty")
	}
	return &Credential{apiKey: apiKey, signer: s}, nil
}

// NewHMAC creates a credential signing with HMAC-SHA256.
func NewHMAC(apiKey, secret string) (*Credential, error) {
	s, err := signer.NewHMAC(secret)
	if err != nil {
		return nil, err
	}
	return New(apiKey, s)
}

// FromConfig builds the credential described by cfg. It returns nil and no
// error when no API key is configured. Key files are loaded here, so a bad
// key fails before any client is created.
func FromConfig(cfg *core.Config) (*Credential, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}

	var (
		s   signer.Signer
		err error
	)
	switch cfg.KeyType {
	case core.KeyTypeHMAC, "":
		if cfg.SecretKey == "" {
			return New(cfg.APIKey, nil)
		}
		s, err = signer.NewHMAC(cfg.SecretKey)
	case core.KeyTypeRSA:
		s, err = signer.NewRSAFromFile(cfg.PrivateKeyPath, cfg.PrivateKeyPassphrase)
	case core.KeyTypeEd25519:
		s, err = signer.NewEd25519FromFile(cfg.PrivateKeyPath, cfg.PrivateKeyPassphrase)
	default:
		return nil, fmt.Errorf("unknown key type %q", cfg.KeyType)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s signer: %w", cfg.KeyType, err)
	}
	return New(cfg.APIKey, s)
}

func (c *Credential) APIKey() string {
	return c.apiKey
}

// Signer returns the signer, or nil for a key-only credential.
func (c *Credential) Signer() signer.Signer {
	return c.signer
}

// CanSign reports whether signed endpoints can be used.
func (c *Credential) CanSign() bool {
	return c != nil && c.signer != nil
}

// Sign signs payload, failing with core.ErrNoCredentials for a key-only credential.
func (c *Credential) Sign(payload string) (string, error) {
	if !c.CanSign() {
		return "", core.ErrNoCredentials
	}
	return c.signer.Sign(payload)
}

func (c *Credential) String() string {
	return fmt.Sprintf("Credential{Key:%s, Signer:%T}", MaskKey(c.apiKey), c.signer)
}

// MaskKey hides all but the first and last four characters of key.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
