package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	"mediaguard/backend/internal/identity"
)

const callerKey = "caller"

var errMissingToken = errors.New("authorization token missing")

// Authenticator issues and verifies the HS256 tokens that carry a caller
// identity in the sub claim.
type Authenticator struct {
	Secret []byte
	Issuer string
	TTL    time.Duration

	now func() time.Time
}

func NewAuthenticator(secret, issuer string, ttl time.Duration) *Authenticator {
	return &Authenticator{Secret: []byte(secret), Issuer: issuer, TTL: ttl, now: time.Now}
}

// Issue signs a token for addr.
func (a *Authenticator) Issue(addr identity.Identity) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   addr.String(),
		Issuer:    a.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.TTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

// Verify checks signature, issuer and expiry and returns the caller identity.
func (a *Authenticator) Verify(raw string) (identity.Identity, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", err
	}
	id, err := identity.Parse(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("token subject: %w", err)
	}
	return id, nil
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for websocket handshakes.
func bearerToken(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return "", errMissingToken
		}
		return token, nil
	}
	if token := c.Query("token"); token != "" {
		return token, nil
	}
	return "", errMissingToken
}

// RequireCaller rejects requests without a valid token and stores the caller
// identity on both the gin and the request context.
func (a *Authenticator) RequireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		caller, err := a.Verify(token)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		c.Set(callerKey, caller)
		c.Request = c.Request.WithContext(identity.WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}

func callerFrom(c *gin.Context) identity.Identity {
	if v, ok := c.Get(callerKey); ok {
		if id, ok := v.(identity.Identity); ok {
			return id
		}
	}
	id, _ := identity.CallerFrom(c.Request.Context())
	return id
}
