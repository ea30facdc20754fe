// Package api is the HTTP ingress (C9): a thin gin binding over the
// orchestrator's five logical operations, guarded by a bearer-token
// middleware, every response wrapped in the standard envelope.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"kiatrader/internal/uag"
)

const bearerServiceSubject = "kiatrader-operator"

// IssueServiceToken mints the single long-lived bearer token operators use
// to call the API, signed with secret. There is no login flow — the token
// is minted once at boot (see cmd/server) and handed to the operator out of
// band, matching spec's "static bearer token (env-configured)".
func IssueServiceToken(secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   bearerServiceSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// AuthMiddleware requires a valid "Authorization: Bearer <jwt>" header
// signed with secret, and sets the token subject as "user_id" in the gin
// context — mirroring the teacher's gin.Context.GetString("user_id")
// pattern, even though this system has exactly one caller identity.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			abortUnauthorized(c)
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c)
			return
		}

		c.Set("user_id", claims.Subject)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	requestID := uuid.NewString()
	c.AbortWithStatusJSON(http.StatusUnauthorized, uag.BuildErrorEnvelope(
		requestID, "UAG_UNAUTHORIZED", "인증이 필요합니다.", false, nil,
	))
}
