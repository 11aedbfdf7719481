package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/personapal/internal/common"
	"github.com/suPer8Hu/personapal/internal/httpapi/middleware"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{
		"pong":          true,
		"fallback_mode": h.Hub.FallbackMode(),
	})
}

// EnsureProfile creates the caller's profile row on their first
// authenticated request. Failures never block the request.
func (h *Handler) EnsureProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := middleware.UserID(c); uid != "" && h.Profiles != nil {
			h.Profiles.EnsureOnce(c.Request.Context(), uid, middleware.UserEmail(c), "")
		}
		c.Next()
	}
}

func (h *Handler) Me(c *gin.Context) {
	uid := middleware.UserID(c)
	p, err := h.Profiles.Ensure(c.Request.Context(), uid, middleware.UserEmail(c), "")
	if err != nil {
		log.Printf("[Me] ensure profile failed uid=%s err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{"profile": p})
}
