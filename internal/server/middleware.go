package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxUserID    = "userID"
	ctxUserEmail = "userEmail"
	ctxProjectID = "projectID"

	headerProjectID = "X-Project-ID"
	headerUserID    = "X-User-ID"
)

// requireAuth validates the Supabase-style bearer JWT and stashes the user
// identity on the request context. With no secret configured (local
// development), identity comes from the X-User-ID header instead.
func requireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			userID := c.GetHeader(headerUserID)
			if userID == "" {
				userID = "local-dev"
			}

			c.Set(ctxUserID, userID)
			c.Next()

			return
		}

		authHeader := c.GetHeader("Authorization")

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			abortError(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")

			return
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}

			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			abortError(c, http.StatusUnauthorized, "unauthorized", "invalid token")

			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortError(c, http.StatusUnauthorized, "unauthorized", "invalid claims")

			return
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			abortError(c, http.StatusUnauthorized, "unauthorized", "token has no subject")

			return
		}

		c.Set(ctxUserID, sub)

		if email, ok := claims["email"].(string); ok {
			c.Set(ctxUserEmail, email)
		}

		c.Next()
	}
}

// projectScope extracts the project from the X-Project-ID header or the
// projectId query parameter. Handlers that require a project call
// mustProjectID; the rest treat it as optional.
func projectScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.GetHeader(headerProjectID)
		if projectID == "" {
			projectID = c.Query("projectId")
		}

		if projectID != "" {
			c.Set(ctxProjectID, projectID)
		}

		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func currentProjectID(c *gin.Context) string {
	return c.GetString(ctxProjectID)
}

// mustProjectID rejects the request when no project scope was supplied.
func mustProjectID(c *gin.Context) (string, bool) {
	projectID := currentProjectID(c)
	if projectID == "" {
		abortError(c, http.StatusBadRequest, "missing_project_scope", "X-Project-ID header or projectId query parameter required")

		return "", false
	}

	return projectID, true
}

func abortError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}
