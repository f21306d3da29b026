package devserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionCookie  = "session"
	sessionMaxAge  = 24 * time.Hour
	cookiePathRoot = "/"
)

// sessionClaims carries the logged-in username.
type sessionClaims struct {
	Sub string `json:"sub"`
	jwt.RegisteredClaims
}

// sessionManager issues and validates the HS256 session cookie.
type sessionManager struct {
	secret []byte
}

func newSessionManager(secret string) *sessionManager {
	return &sessionManager{secret: []byte(secret)}
}

// issueToken signs a session token for the user.
func (m *sessionManager) issueToken(username string) (string, error) {
	now := time.Now()
	claims := &sessionClaims{
		Sub: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionMaxAge)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// validateToken returns the username from a valid session token.
func (m *sessionManager) validateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Sub, nil
}

// requireSession rejects requests without a valid session cookie.
func (m *sessionManager) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(sessionCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		username, err := m.validateToken(cookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}
		c.Set("username", username)
		c.Next()
	}
}
