// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements caller identification. Every API request must carry
// an HMAC-signed JWT (Authorization: Bearer <token>) whose subject is the
// user id. Browsers cannot set headers on a WebSocket handshake, so the token
// is also accepted from the access_token query parameter.
//
// For local development AllowHeader trusts a plain X-User-ID header instead.
// It must stay off wherever the service is reachable by untrusted clients.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// ctxKeyUserID is where the authenticated user id is stored.
	ctxKeyUserID = "userID"
	// ctxKeyEmail holds the email claim, when the token carries one.
	ctxKeyEmail = "userEmail"

	// HeaderUserID is the development identity header.
	HeaderUserID = "X-User-ID"
	// QueryAccessToken carries the bearer token on WebSocket handshakes.
	QueryAccessToken = "access_token"
)

var (
	// ErrMissingToken is returned when no credentials were presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned for malformed, badly signed or subject-less tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for tokens past their exp claim.
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the JWT payload. The user id is the registered subject.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AuthOptions configures Auth.
type AuthOptions struct {
	// Secret is the HMAC key tokens are signed with.
	Secret string
	// Issuer, when set, must match the iss claim.
	Issuer string
	// AllowHeader trusts X-User-ID when no token is presented.
	AllowHeader bool
}

// Verifier validates tokens against AuthOptions.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier returns a Verifier for secret and issuer.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates tokenString.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Auth returns a middleware that identifies the caller and stores the user
// id in the Gin context. Unidentified requests are rejected with 401.
func Auth(opts AuthOptions) gin.HandlerFunc {
	v := NewVerifier(opts.Secret, opts.Issuer)

	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			if opts.AllowHeader {
				if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
					setUser(c, uid)
					c.Next()
					return
				}
			}
			abortUnauthorized(c, ErrMissingToken)
			return
		}

		claims, err := v.Verify(raw)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}
		setUser(c, claims.Subject)
		if claims.Email != "" {
			c.Set(ctxKeyEmail, claims.Email)
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" when Auth did not run.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// UserEmail returns the email claim of the caller's token, if any.
func UserEmail(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyEmail); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func setUser(c *gin.Context, uid string) {
	c.Set(ctxKeyUserID, uid)
	enrichLogger(c, "user_id", uid)
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(c.Query(QueryAccessToken))
}

func abortUnauthorized(c *gin.Context, err error) {
	c.Header("WWW-Authenticate", `Bearer realm="social-chat"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    err.Error(),
	})
}
