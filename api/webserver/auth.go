package webserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const subjectKey = "sub"

// JWTMiddleware accepts HS256 bearer tokens signed with secret and stores
// the sub claim on the context.
func JWTMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := jwt.Parse(h[7:], func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has no subject"})
			return
		}
		c.Set(subjectKey, sub)
		c.Next()
	}
}

var errForbidden = errors.New("token subject does not match userId")

// authorize rejects requests whose userId differs from the token subject.
// Without JWT auth every userId is accepted.
func authorize(c *gin.Context, userID string) bool {
	sub := c.GetString(subjectKey)
	if sub == "" || sub == userID {
		return true
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errForbidden.Error()})
	return false
}
