package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// TeacherAuth enforces bearer access tokens and stores the claims on the context.
func TeacherAuth(signer *Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please sign in to continue"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := signer.Parse(tokenStr, TypeAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired. Please sign in again"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by TeacherAuth.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

// TeacherID returns the authenticated teacher's id, or "" outside TeacherAuth.
func TeacherID(c *gin.Context) string {
	claims, _ := ClaimsFrom(c)
	return claims.Subject
}
