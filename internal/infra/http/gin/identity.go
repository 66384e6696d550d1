package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

// Caller identity arrives from the gateway in trusted headers; this service
// performs no authentication of its own.
const (
	headerGuestID = "X-Guest-ID"
	headerHostID  = "X-Host-ID"
	headerAdminID = "X-Admin-ID"
)

func requireHeader(c *gin.Context, header string) (string, bool) {
	value := strings.TrimSpace(c.GetHeader(header))
	if value == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": header + " header required"})
		return "", false
	}
	return value, true
}

func requireGuest(c *gin.Context) (string, bool) { return requireHeader(c, headerGuestID) }
func requireHost(c *gin.Context) (string, bool)  { return requireHeader(c, headerHostID) }
func requireAdmin(c *gin.Context) (string, bool) { return requireHeader(c, headerAdminID) }

// ActorKind names the calling principal for request logs, most privileged
// first, without exposing the identity value itself.
func ActorKind(c *gin.Context) string {
	switch {
	case strings.TrimSpace(c.GetHeader(headerAdminID)) != "":
		return "admin"
	case strings.TrimSpace(c.GetHeader(headerHostID)) != "":
		return "host"
	case strings.TrimSpace(c.GetHeader(headerGuestID)) != "":
		return "guest"
	default:
		return ""
	}
}
