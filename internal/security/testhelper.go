package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"time"
)

// TestHMACSecret is a 32-byte HS256 secret for unit tests only.
const TestHMACSecret = "test-secret-0123456789abcdef0123"

var (
	testKeysOnce sync.Once
	testPrivPEM  string
	testPubPEM   string
	testKeysErr  error
)

// TestKeyPairPEM returns a process-wide ES256 key pair as PKCS#8 and PKIX PEM, generated on first use.
// For unit tests only.
func TestKeyPairPEM() (privatePEM, publicPEM string, err error) {
	testKeysOnce.Do(func() {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			testKeysErr = err
			return
		}
		privDER, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			testKeysErr = err
			return
		}
		pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			testKeysErr = err
			return
		}
		testPrivPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
		testPubPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	})
	return testPrivPEM, testPubPEM, testKeysErr
}

// NewTestTokenProvider returns an ES256 TokenProvider over TestKeyPairPEM with a one hour TTL.
// For unit tests only.
func NewTestTokenProvider() (*TokenProvider, error) {
	priv, pub, err := TestKeyPairPEM()
	if err != nil {
		return nil, err
	}
	signer, verifier, err := LoadKeyPair(priv, pub)
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(signer, verifier, "test-issuer", "test-audience", time.Hour)
}
