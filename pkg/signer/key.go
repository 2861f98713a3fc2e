package signer

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"

	"binconn/pkg/core"
)

// LoadPrivateKey parses a PKCS#1, PKCS#8 or OpenSSH private key.
// A non-empty passphrase decrypts protected keys.
func LoadPrivateKey(pemBytes []byte, passphrase string) (any, error) {
	var (
		key any
		err error
	)
	if passphrase == "" {
		key, err = ssh.ParseRawPrivateKey(pemBytes)
	} else {
		key, err = ssh.ParseRawPrivateKeyWithPassphrase(pemBytes, []byte(passphrase))
	}
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, &core.SigningError{Op: "load key", Err: errors.New("key is encrypted and no passphrase was given")}
		}
		return nil, &core.SigningError{Op: "load key", Err: err}
	}
	return key, nil
}

func readKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.SigningError{Op: "read key file", Err: err}
	}
	return data, nil
}

// RSA signs with RSASSA-PKCS1-v1_5 over SHA-256 and returns standard base64.
type RSA struct {
	key *rsa.PrivateKey
}

// NewRSA creates an RSA signer from PEM encoded key material.
func NewRSA(pemBytes []byte, passphrase string) (*RSA, error) {
	key, err := LoadPrivateKey(pemBytes, passphrase)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, &core.SigningError{Op: "load rsa key", Err: fmt.Errorf("expected RSA key, got %T", key)}
	}
	return &RSA{key: rsaKey}, nil
}

// NewRSAFromFile reads the key at path and creates an RSA signer.
func NewRSAFromFile(path, passphrase string) (*RSA, error) {
	data, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	return NewRSA(data, passphrase)
}

// Sign returns base64(RSA-SHA256(payload)).
func (s *RSA) Sign(payload string) (string, error) {
	digest := sha256.Sum256([]byte(payload))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", &core.SigningError{Op: "rsa sign", Err: err}
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Public returns the verification key.
func (s *RSA) Public() *rsa.PublicKey {
	return &s.key.PublicKey
}

// Ed25519 signs with Ed25519 and returns standard base64.
type Ed25519 struct {
	key ed25519.PrivateKey
}

// NewEd25519 creates an Ed25519 signer from PEM encoded key material.
func NewEd25519(pemBytes []byte, passphrase string) (*Ed25519, error) {
	key, err := LoadPrivateKey(pemBytes, passphrase)
	if err != nil {
		return nil, err
	}
	switch k := key.(type) {
	case ed25519.PrivateKey:
		return &Ed25519{key: k}, nil
	case *ed25519.PrivateKey:
		return &Ed25519{key: *k}, nil
	default:
		return nil, &core.SigningError{Op: "load ed25519 key", Err: fmt.Errorf("expected Ed25519 key, got %T", key)}
	}
}

// NewEd25519FromFile reads the key at path and creates an Ed25519 signer.
func NewEd25519FromFile(path, passphrase string) (*Ed25519, error) {
	data, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	return NewEd25519(data, passphrase)
}

// Sign returns base64(Ed25519(payload)).
func (s *Ed25519) Sign(payload string) (string, error) {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(s.key, []byte(payload))), nil
}

// Public returns the verification key.
func (s *Ed25519) Public() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}
