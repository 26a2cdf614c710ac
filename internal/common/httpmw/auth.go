package httpmw

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Gin context keys populated by AgentAuth.
const (
	ContextAgentID  = "agent_id"
	ContextTenantID = "tenant_id"
)

// TokenResolver resolves an opaque bearer token to its owning agent and tenant.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (agentID, tenantID string, err error)
}

// AgentAuth guards agent-only endpoints. It extracts the Authorization bearer,
// resolves it, and stores agent_id/tenant_id in the gin context. Requests
// without a valid token are rejected with 401.
func AgentAuth(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		agentID, tenantID, err := resolver.ResolveToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextAgentID, agentID)
		c.Set(ContextTenantID, tenantID)
		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer x" header
// value. Returns "" when the header is absent or not a bearer scheme.
func BearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
