package middleware

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var (
	jwtSecretOnce sync.Once
	jwtSecretVal  []byte
)

func jwtSecret() []byte {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			panic("JWT_SECRET environment variable is not set")
		}
		jwtSecretVal = []byte(secret)
	})
	return jwtSecretVal
}

// MustInitJWTSecret resolves the signing secret at startup so that a missing
// JWT_SECRET fails the process before it accepts traffic.
func MustInitJWTSecret() {
	jwtSecret()
}

// Organization roles, highest first.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

var roleRank = map[string]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// RoleAtLeast reports whether role grants at least the privileges of min.
func RoleAtLeast(role, min string) bool {
	return roleRank[role] >= roleRank[min] && roleRank[min] > 0
}

// DefaultTokenTTL is the lifetime of tokens issued at login.
const DefaultTokenTTL = 24 * time.Hour

type Claims struct {
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	OrganizationID string `json:"organizationId,omitempty"`
	Role           string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller as seen by handlers.
type Identity struct {
	UserID         string
	Email          string
	OrganizationID string
	Role           string
}

// IssueToken signs an HS256 token for the identity.
func IssueToken(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:         id.UserID,
		Email:          id.Email,
		OrganizationID: id.OrganizationID,
		Role:           id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   id.UserID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret())
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// ParseToken validates the signature and expiry of a token.
func ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return jwtSecret(), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Authorization header required",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid authorization header format",
			})
			return
		}

		claims, err := ParseToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid or expired token",
			})
			return
		}

		c.Set("userId", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("organizationId", claims.OrganizationID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireOrganization rejects tokens that were not issued for an organization.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		if orgID, _ := GetOrganizationID(c); orgID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": "An organization must be selected",
			})
			return
		}
		c.Next()
	}
}

// RequireRole lets the request through when the caller's role is at least min.
func RequireRole(min string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		if !RoleAtLeast(role, min) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": "Insufficient role for this operation",
			})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userId")
	if !exists {
		return "", false
	}
	s, ok := userID.(string)
	return s, ok
}

func GetOrganizationID(c *gin.Context) (string, bool) {
	orgID, exists := c.Get("organizationId")
	if !exists {
		return "", false
	}
	s, ok := orgID.(string)
	return s, ok
}

// CurrentIdentity collects everything AuthMiddleware placed in the context.
func CurrentIdentity(c *gin.Context) Identity {
	return Identity{
		UserID:         c.GetString("userId"),
		Email:          c.GetString("email"),
		OrganizationID: c.GetString("organizationId"),
		Role:           c.GetString("role"),
	}
}
