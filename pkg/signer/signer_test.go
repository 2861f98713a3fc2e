package signer

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"binconn/pkg/core"
)

const (
	testSecret  = "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j"
	testPayload = "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"
)

func TestHMAC_KnownVector(t *testing.T) {
	s, err := NewHMAC(testSecret)
	require.NoError(t, err)

	sig, err := s.Sign(testPayload)
	require.NoError(t, err)
	assert.Equal(t, "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71", sig)
}

func TestHMAC_Deterministic(t *testing.T) {
	s, err := NewHMAC("secret")
	require.NoError(t, err)

	a, _ := s.Sign("symbol=BNBUSDT&timestamp=1")
	b, _ := s.Sign("symbol=BNBUSDT&timestamp=1")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHMAC_SingleCharacterChangesSignature(t *testing.T) {
	s, err := NewHMAC("secret")
	require.NoError(t, err)

	a, _ := s.Sign("symbol=BNBUSDT&timestamp=1")
	b, _ := s.Sign("symbol=BNBUSDT&timestamp=2")
	assert.NotEqual(t, a, b)
}

func TestNewHMAC_EmptySecret(t *testing.T) {
	_, err := NewHMAC("")
	require.Error(t, err)
	assert.True(t, core.IsSigningError(err))
}

func generateRSA(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestRSA_SignVerifies(t *testing.T) {
	key := generateRSA(t)

	tests := []struct {
		name  string
		block *pem.Block
	}{
		{"pkcs1", &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}},
		{"pkcs8", func() *pem.Block {
			der, err := x509.MarshalPKCS8PrivateKey(key)
			require.NoError(t, err)
			return &pem.Block{Type: "PRIVATE KEY", Bytes: der}
		}()},
		{"openssh", func() *pem.Block {
			block, err := ssh.MarshalPrivateKey(key, "")
			require.NoError(t, err)
			return block
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewRSA(pem.EncodeToMemory(tt.block), "")
			require.NoError(t, err)

			sig, err := s.Sign(testPayload)
			require.NoError(t, err)

			raw, err := base64.StdEncoding.DecodeString(sig)
			require.NoError(t, err)
			digest := sha256.Sum256([]byte(testPayload))
			assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], raw))
			assert.Equal(t, key.PublicKey.N, s.Public().N)
		})
	}
}

func TestRSA_FromFile(t *testing.T) {
	key := generateRSA(t)
	path := filepath.Join(t.TempDir(), "rsa.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	require.NoError(t, os.WriteFile(path, data, 0o600))

	s, err := NewRSAFromFile(path, "")
	require.NoError(t, err)

	sig, err := s.Sign("a=1")
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
}

func TestRSA_LoadFailuresAreImmediate(t *testing.T) {
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	edDER, err := x509.MarshalPKCS8PrivateKey(edKey)
	require.NoError(t, err)

	tests := []struct {
		name string
		load func() error
	}{
		{"missing_file", func() error {
			_, err := NewRSAFromFile(filepath.Join(t.TempDir(), "nope.pem"), "")
			return err
		}},
		{"garbage", func() error {
			_, err := NewRSA([]byte("not a key"), "")
			return err
		}},
		{"wrong_algorithm", func() error {
			_, err := NewRSA(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: edDER}), "")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.load()
			require.Error(t, err)
			assert.True(t, core.IsSigningError(err))
		})
	}
}

func TestEd25519_SignVerifies(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)

	s, err := NewEd25519(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), "")
	require.NoError(t, err)

	sig, err := s.Sign(testPayload)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, []byte(testPayload), raw))
	assert.Equal(t, pub, s.Public())
}

func TestEd25519_EncryptedOpenSSH(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("hunter2"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	_, err = NewEd25519FromFile(path, "")
	require.Error(t, err)
	assert.ErrorContains(t, err, "no passphrase")

	s, err := NewEd25519FromFile(path, "hunter2")
	require.NoError(t, err)

	sig, err := s.Sign("listenKey=abc")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, []byte("listenKey=abc"), raw))
}
