// Package keycloak verifies bearer tokens issued by a Keycloak realm and
// exposes the caller's identity to the HTTP layer. The token subject is the
// owner id of filing sessions and stored applications.
package keycloak

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	stdliberrors "errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/IPFiling-Assistant/internal/config"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// Verifier validates a raw bearer token and returns its claims.
type Verifier interface {
	VerifyToken(ctx context.Context, rawToken string) (*Claims, error)
}

// Claims is the caller identity carried by a verified token.
type Claims struct {
	Subject           string    `json:"sub"`
	Email             string    `json:"email"`
	PreferredUsername string    `json:"preferred_username"`
	Roles             []string  `json:"roles"`
	ExpiresAt         time.Time `json:"exp"`
}

// HasRole reports whether role is among the realm or client roles.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

var (
	ErrTokenExpired          = errors.New(errors.ErrCodeUnauthorized, "token expired")
	ErrTokenInvalidSignature = errors.New(errors.ErrCodeUnauthorized, "invalid token signature")
	ErrTokenInvalidIssuer    = errors.New(errors.ErrCodeUnauthorized, "invalid token issuer")
	ErrTokenInvalidAudience  = errors.New(errors.ErrCodeUnauthorized, "invalid token audience")
	ErrTokenMalformed        = errors.New(errors.ErrCodeUnauthorized, "malformed token")
	ErrTokenNoSubject        = errors.New(errors.ErrCodeUnauthorized, "token has no subject")
	ErrJWKSRefreshFailed     = errors.New(errors.ErrCodeServiceUnavailable, "jwks refresh failed")
	ErrInvalidConfig         = errors.New(errors.ErrCodeInvalidConfig, "invalid auth configuration")
)

const clockSkew = 30 * time.Second

// NewVerifier builds the verifier selected by cfg: an HMAC verifier when a
// shared secret is configured, otherwise a Keycloak JWKS verifier.
func NewVerifier(cfg config.AuthConfig, logger logging.Logger) (Verifier, error) {
	if cfg.HMACSecret != "" {
		return NewHMACVerifier([]byte(cfg.HMACSecret), cfg.ClientID), nil
	}
	return NewKeycloakVerifier(cfg, logger, nil)
}

// ─────────────────────────────────────────────────────────────────────────────
// Keycloak (RS256 via JWKS)
// ─────────────────────────────────────────────────────────────────────────────

type jwksCache struct {
	keys        map[string]*rsa.PublicKey
	mu          sync.RWMutex
	client      *http.Client
	url         string
	minInterval time.Duration
	fetchedAt   time.Time
	logger      logging.Logger
}

func (c *jwksCache) refresh(ctx context.Context) error {
	c.logger.Debug("Refreshing JWKS cache", logging.String("url", c.url))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch JWKS: %s", resp.Status)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return err
	}

	newKeys := make(map[string]*rsa.PublicKey)
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" || (key.Use != "" && key.Use != "sig") {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
		if err != nil {
			c.logger.Warn("Failed to decode modulus", logging.String("kid", key.Kid), logging.Err(err))
			continue
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
		if err != nil {
			c.logger.Warn("Failed to decode exponent", logging.String("kid", key.Kid), logging.Err(err))
			continue
		}
		e := 0
		for _, b := range eBytes {
			e = e<<8 + int(b)
		}
		newKeys[key.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}
	}

	c.mu.Lock()
	c.keys = newKeys
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// getKey returns the key for kid, refetching the set when kid is unknown and
// the last fetch is older than minInterval.
func (c *jwksCache) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	stale := time.Since(c.fetchedAt) >= c.minInterval
	c.mu.RUnlock()
	if ok {
		return key, nil
	}
	if !stale {
		return nil, ErrTokenInvalidSignature
	}
	if err := c.refresh(ctx); err != nil {
		c.logger.Error("Failed to refresh JWKS", logging.Err(err))
		return nil, ErrJWKSRefreshFailed.WithCause(err)
	}
	c.mu.RLock()
	key, ok = c.keys[kid]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrTokenInvalidSignature
	}
	return key, nil
}

type keycloakVerifier struct {
	issuer   string
	clientID string
	jwks     *jwksCache
	logger   logging.Logger
}

// NewKeycloakVerifier verifies RS256 tokens of realm cfg.Realm. A nil
// httpClient gets one that honours cfg.RequestTimeout. Keys are fetched on
// first use.
func NewKeycloakVerifier(cfg config.AuthConfig, logger logging.Logger, httpClient *http.Client) (Verifier, error) {
	if cfg.BaseURL == "" || cfg.Realm == "" || cfg.ClientID == "" {
		return nil, ErrInvalidConfig.WithDetail("base_url, realm and client_id are required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	issuer := fmt.Sprintf("%s/realms/%s", strings.TrimRight(cfg.BaseURL, "/"), cfg.Realm)
	return &keycloakVerifier{
		issuer:   issuer,
		clientID: cfg.ClientID,
		jwks: &jwksCache{
			keys:        map[string]*rsa.PublicKey{},
			client:      httpClient,
			url:         issuer + "/protocol/openid-connect/certs",
			minInterval: cfg.KeyRefresh,
			logger:      logger,
		},
		logger: logger,
	}, nil
}

func (v *keycloakVerifier) VerifyToken(ctx context.Context, rawToken string) (*Claims, error) {
	var keyErr error
	token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			keyErr = ErrTokenMalformed
			return nil, keyErr
		}
		key, err := v.jwks.getKey(ctx, kid)
		if err != nil {
			keyErr = err
			return nil, err
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		if keyErr != nil {
			return nil, keyErr
		}
		return nil, mapParseError(err)
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if !audienceMatches(mc, v.clientID) {
		return nil, ErrTokenInvalidAudience
	}
	return claimsFromMap(mc, v.clientID)
}

// ─────────────────────────────────────────────────────────────────────────────
// HMAC (HS256, development and tests)
// ─────────────────────────────────────────────────────────────────────────────

type hmacVerifier struct {
	secret   []byte
	audience string
}

// NewHMACVerifier verifies HS256 tokens signed with secret. A non-empty
// audience is enforced.
func NewHMACVerifier(secret []byte, audience string) Verifier {
	return &hmacVerifier{secret: secret, audience: audience}
}

func (v *hmacVerifier) VerifyToken(_ context.Context, rawToken string) (*Claims, error) {
	token, err := jwt.Parse(rawToken, func(*jwt.Token) (interface{}, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, mapParseError(err)
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if v.audience != "" && !audienceMatches(mc, v.audience) {
		return nil, ErrTokenInvalidAudience
	}
	return claimsFromMap(mc, v.audience)
}

// ─────────────────────────────────────────────────────────────────────────────
// Claim mapping
// ─────────────────────────────────────────────────────────────────────────────

func mapParseError(err error) error {
	switch {
	case stdliberrors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case stdliberrors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenInvalidSignature
	case stdliberrors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrTokenInvalidIssuer
	case stdliberrors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return errors.Wrap(err, errors.ErrCodeUnauthorized, "token verification failed")
	}
}

// audienceMatches accepts clientID in aud or as the authorized party, which
// is where Keycloak puts it for public clients.
func audienceMatches(mc jwt.MapClaims, clientID string) bool {
	if aud, err := mc.GetAudience(); err == nil {
		for _, a := range aud {
			if a == clientID {
				return true
			}
		}
	}
	azp, _ := mc["azp"].(string)
	return azp == clientID
}

func claimsFromMap(mc jwt.MapClaims, clientID string) (*Claims, error) {
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrTokenNoSubject
	}
	c := &Claims{Subject: sub}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	c.Email, _ = mc["email"].(string)
	c.PreferredUsername, _ = mc["preferred_username"].(string)

	if realm, ok := mc["realm_access"].(map[string]interface{}); ok {
		c.Roles = append(c.Roles, stringList(realm["roles"])...)
	}
	if resources, ok := mc["resource_access"].(map[string]interface{}); ok {
		if client, ok := resources[clientID].(map[string]interface{}); ok {
			c.Roles = append(c.Roles, stringList(client["roles"])...)
		}
	}
	return c, nil
}

func stringList(v interface{}) []string {
	items, _ := v.([]interface{})
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

//Personal.AI order the ending
