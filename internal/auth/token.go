package auth

import (
	"errors"
	"time"

	"code.cloudfoundry.org/clock"
	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// ScopeTriggerRuns allows starting a processing pass over HTTP.
	ScopeTriggerRuns = "runs:trigger"
	issuer           = "onboarding-service"
)

// TokenManager handles issuing and validating trigger JWTs.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokenManager builds a new manager. A non-positive ttl defaults to one hour.
func NewTokenManager(secret string, ttl time.Duration, clk clock.Clock) (*TokenManager, error) {
	if len(secret) < 32 {
		return nil, errors.New("trigger secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if clk == nil {
		clk = clock.NewClock()
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, clock: clk}, nil
}

// Claims describes JWT payload.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a trigger token for subject, typically the
// scheduler or operator that will call the endpoint.
func (tm *TokenManager) GenerateToken(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}
	now := tm.clock.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Scope: ScopeTriggerRuns,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates signature, issuer and expiry and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.clock.Now),
	)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
