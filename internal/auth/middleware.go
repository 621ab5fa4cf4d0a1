package auth

import (
	"fmt"
	"net/http"
	"strings"

	"property-listing-api/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	actorKey = "actor"

	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// Middleware resolves the caller into an Actor and aborts with 401 when it cannot.
// In "jwt" mode the bearer token must be HMAC-signed with the configured secret and
// carry a subject; in "header" mode the identity is taken from gateway headers.
func Middleware(cfg config.AuthConfig) gin.HandlerFunc {
	if cfg.Mode == "header" {
		return headerMiddleware(cfg)
	}
	return jwtMiddleware(cfg)
}

func jwtMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	secret := []byte(cfg.JWTSecret)
	roleClaim := cfg.RoleClaim
	if roleClaim == "" {
		roleClaim = "role"
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid claims"})
			return
		}
		subject, err := claims.GetSubject()
		if err != nil || subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has no subject"})
			return
		}

		c.Set(actorKey, NewActor(subject, roleFromClaim(claims[roleClaim], cfg.AdminRole), cfg.AdminRole))
		c.Next()
	}
}

// roleFromClaim accepts a single role string or a list of roles.
// A list containing the admin role resolves to the admin role.
func roleFromClaim(raw interface{}, adminRole string) string {
	if adminRole == "" {
		adminRole = RoleAdmin
	}
	switch roles := raw.(type) {
	case string:
		return roles
	case []interface{}:
		first := ""
		for _, r := range roles {
			s, ok := r.(string)
			if !ok {
				continue
			}
			if s == adminRole {
				return s
			}
			if first == "" {
				first = s
			}
		}
		return first
	case []string:
		for _, s := range roles {
			if s == adminRole {
				return s
			}
		}
		if len(roles) > 0 {
			return roles[0]
		}
	}
	return ""
}

func headerMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing " + HeaderUserID + " header"})
			return
		}
		role := strings.TrimSpace(c.GetHeader(HeaderUserRole))

		c.Set(actorKey, NewActor(userID, role, cfg.AdminRole))
		c.Next()
	}
}

// ActorFrom returns the actor set by Middleware
func ActorFrom(c *gin.Context) (Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return Actor{}, false
	}
	actor, ok := v.(Actor)
	return actor, ok
}

// RequireAdmin aborts with 403 unless the actor holds the admin role.
// It must run after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !actor.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access only"})
			return
		}
		c.Next()
	}
}
