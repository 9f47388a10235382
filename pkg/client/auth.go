package client

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator signs outgoing requests.
type Authenticator interface {
	AddAuthHeaders(req *http.Request) error
}

// JWTAuthenticator signs each request with a short-lived ES256 token bound
// to the request's method, host and path.
type JWTAuthenticator struct {
	keyName    string
	privateKey *ecdsa.PrivateKey
	ttl        time.Duration
}

// NewJWTAuthenticator accepts SEC 1 and PKCS #8 encoded EC private keys.
func NewJWTAuthenticator(keyName, privateKeyPEM string) (*JWTAuthenticator, error) {
	if keyName == "" {
		return nil, fmt.Errorf("key name is required")
	}

	privateKey, err := jwt.ParseECPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse EC private key: %w", err)
	}

	return &JWTAuthenticator{
		keyName:    keyName,
		privateKey: privateKey,
		ttl:        2 * time.Minute,
	}, nil
}

func (j *JWTAuthenticator) AddAuthHeaders(req *http.Request) error {
	token, err := j.generateJWT(req.Method, req.URL.Host, req.URL.Path)
	if err != nil {
		return fmt.Errorf("failed to generate JWT: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (j *JWTAuthenticator) generateJWT(method, host, path string) (string, error) {
	nonce, err := generateNonce()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   j.keyName,
		"iss":   "simfeed-client",
		"nbf":   now.Unix(),
		"exp":   now.Add(j.ttl).Unix(),
		"uri":   method + " " + host + path,
		"nonce": nonce,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = j.keyName
	token.Header["nonce"] = nonce

	tokenString, err := token.SignedString(j.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
