package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/authz"
)

// claims parsed out of a bearer token.
type TokenSubject struct {
	UserID primitive.ObjectID
	Role   authz.Role
}

// ParseBearer validates the Authorization header and extracts the subject.
func ParseBearer(header, secret string) (TokenSubject, error) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return TokenSubject{}, jwt.ErrTokenMalformed
	}

	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return TokenSubject{}, jwt.ErrTokenMalformed
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return TokenSubject{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return TokenSubject{}, jwt.ErrTokenInvalidClaims
	}

	sub, _ := claims["sub"].(string)
	userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(sub))
	if err != nil {
		return TokenSubject{}, jwt.ErrTokenInvalidClaims
	}

	roleValue, _ := claims["role"].(string)
	role, ok := authz.ParseRole(roleValue)
	if !ok {
		return TokenSubject{}, jwt.ErrTokenInvalidClaims
	}

	return TokenSubject{UserID: userID, Role: role}, nil
}

// RequireAuth validates the token and injects userId/role into the context.
func RequireAuth(secret string, policy authz.Policy, roles ...authz.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := ParseBearer(c.GetHeader("Authorization"), secret)
		if err != nil {
			logrus.WithField("module", "middleware").Warn("token validation failed: ", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if !policy.Allow(subject.Role, roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Set("userId", subject.UserID)
		c.Set("role", subject.Role)
		c.Next()
	}
}

// SubjectFromContext reads what RequireAuth stored.
func SubjectFromContext(c *gin.Context) (TokenSubject, bool) {
	id, ok := c.Get("userId")
	if !ok {
		return TokenSubject{}, false
	}
	userID, ok := id.(primitive.ObjectID)
	if !ok {
		return TokenSubject{}, false
	}
	role, _ := c.Get("role")
	parsed, _ := role.(authz.Role)
	return TokenSubject{UserID: userID, Role: parsed}, true
}
