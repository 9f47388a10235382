package api

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errUnauthorized = errors.New("unauthorized")

// TokenVerifier checks ES256 bearer tokens. A token is bound to a single
// request line through its "uri" claim: "<METHOD> <host><path>".
type TokenVerifier struct {
	publicKey *ecdsa.PublicKey
	leeway    time.Duration
}

func NewTokenVerifier(publicKeyPEM string) (*TokenVerifier, error) {
	key, err := jwt.ParseECPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse EC public key: %w", err)
	}
	return &TokenVerifier{publicKey: key, leeway: 5 * time.Second}, nil
}

func (v *TokenVerifier) Verify(r *http.Request) (string, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return "", fmt.Errorf("%w: missing bearer token", errUnauthorized)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUnauthorized, err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: missing subject", errUnauthorized)
	}

	uri, _ := claims["uri"].(string)
	if want := r.Method + " " + r.Host + r.URL.Path; uri != want {
		return "", fmt.Errorf("%w: token issued for %q, not %q", errUnauthorized, uri, want)
	}

	return subject, nil
}

func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.verifier == nil {
			next(w, r)
			return
		}

		subject, err := s.verifier.Verify(r)
		if err != nil {
			s.logger.WithError(err).WithField("remote", r.RemoteAddr).Warn("Rejected order request")
			s.writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}

		s.logger.WithField("subject", subject).Debug("Authenticated order request")
		next(w, r)
	}
}
