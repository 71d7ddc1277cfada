package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
)

// AuthConfig configures bearer-token authentication for state-changing
// routes. Tokens are HS256 JWTs whose subject is the caller's hex address.
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

type contextKey string

const contextKeyCaller contextKey = "vaultd.caller"

var errUnauthenticated = errors.New("unauthenticated")

// Authenticator verifies bearer tokens and attaches the caller address to the
// request context. Without a secret every authenticated route is refused.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
	logger *slog.Logger
}

// NewAuthenticator builds an Authenticator from cfg.
func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 30 * time.Second
	}
	return &Authenticator{
		cfg:    cfg,
		secret: []byte(strings.TrimSpace(cfg.HMACSecret)),
		logger: logger,
	}
}

// Middleware rejects requests without a valid token for a hex-address subject.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		caller, err := a.verify(tokenString)
		if err != nil {
			a.logger.Warn("token rejected", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyCaller, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) verify(tokenString string) (common.Address, error) {
	if len(a.secret) == 0 {
		return common.Address{}, errors.New("auth secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return common.Address{}, err
	}
	if !token.Valid {
		return common.Address{}, errors.New("token invalid")
	}
	if !common.IsHexAddress(claims.Subject) {
		return common.Address{}, fmt.Errorf("subject %q is not an address", claims.Subject)
	}
	return common.HexToAddress(claims.Subject), nil
}

// IssueToken signs an HS256 token for caller, valid for ttl.
func IssueToken(cfg AuthConfig, caller common.Address, ttl time.Duration) (string, error) {
	secret := strings.TrimSpace(cfg.HMACSecret)
	if secret == "" {
		return "", errors.New("auth secret not configured")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   caller.Hex(),
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func callerFrom(ctx context.Context) (common.Address, error) {
	caller, ok := ctx.Value(contextKeyCaller).(common.Address)
	if !ok {
		return common.Address{}, errUnauthenticated
	}
	return caller, nil
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
