package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minHMACSecretLen is the shortest HS256 secret accepted (256 bits).
const minHMACSecretLen = 32

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWeakSecret is returned when an HS256 secret is shorter than 32 bytes.
	ErrWeakSecret = errors.New("jwt secret must be at least 32 bytes")
	// ErrNoSigningKey is returned when neither a key pair nor a secret is configured.
	ErrNoSigningKey = errors.New("no JWT signing key configured")
)

// SessionClaims holds JWT claims for the session credential issued after OTP verification.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
	Role   string `json:"role"`
}

// TokenProvider issues and validates session JWTs using RS256/ES256 (key pair) or HS256 (shared secret).
type TokenProvider struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	issuer    string
	audience  string
	ttl       time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and validated by ValidateSession.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) (*TokenProvider, error) {
	if privateKey == nil || publicKey == nil {
		return nil, ErrInvalidKey
	}
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	if KeyAlg(publicKey) != method.Alg() {
		return nil, ErrInvalidKey
	}
	return &TokenProvider{
		method:    method,
		signKey:   privateKey,
		verifyKey: publicKey,
		issuer:    issuer,
		audience:  audience,
		ttl:       ttl,
	}, nil
}

// NewHMACTokenProvider returns a TokenProvider that signs with HS256 and the given secret.
func NewHMACTokenProvider(secret []byte, issuer, audience string, ttl time.Duration) (*TokenProvider, error) {
	if len(secret) < minHMACSecretLen {
		return nil, ErrWeakSecret
	}
	key := append([]byte(nil), secret...)
	return &TokenProvider{
		method:    jwt.SigningMethodHS256,
		signKey:   key,
		verifyKey: key,
		issuer:    issuer,
		audience:  audience,
		ttl:       ttl,
	}, nil
}

// NewTokenProviderFromConfig prefers the PEM key pair when both halves are set and falls back to the HS256 secret.
func NewTokenProviderFromConfig(privateKeyPEM, publicKeyPEM, secret, issuer, audience string, ttl time.Duration) (*TokenProvider, error) {
	if privateKeyPEM != "" && publicKeyPEM != "" {
		signer, pub, err := LoadKeyPair(privateKeyPEM, publicKeyPEM)
		if err != nil {
			return nil, err
		}
		return NewTokenProvider(signer, pub, issuer, audience, ttl)
	}
	if secret != "" {
		return NewHMACTokenProvider([]byte(secret), issuer, audience, ttl)
	}
	return nil, ErrNoSigningKey
}

// Alg returns the JWS algorithm name used for signing (e.g. "RS256").
func (p *TokenProvider) Alg() string {
	return p.method.Alg()
}

// IssueSession issues a session JWT carrying the user id and role.
// Returns the token string and its expiration time.
func (p *TokenProvider) IssueSession(userID, role string) (token string, expiresAt time.Time, err error) {
	if userID == "" || role == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
		Role:   role,
	}
	token, err = jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateSession parses and validates the session token (signature, alg, exp, iss, aud).
func (p *TokenProvider) ValidateSession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != p.method.Alg() {
			return nil, ErrInvalidToken
		}
		return p.verifyKey, nil
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.UserID != claims.Subject || claims.Role == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
