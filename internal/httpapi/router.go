package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/personapal/internal/common"
	"github.com/suPer8Hu/personapal/internal/config"
	"github.com/suPer8Hu/personapal/internal/httpapi/handlers"
	"github.com/suPer8Hu/personapal/internal/httpapi/middleware"
	"github.com/suPer8Hu/personapal/internal/relay"
)

func NewRouter(cfg config.Config, h *handlers.Handler, rh *relay.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	r.GET("/ping", h.Ping)

	// reply relay, called cross-origin by browser clients
	if rh != nil {
		fn := r.Group("/functions")
		fn.Use(relay.CORS())
		rh.Register(fn, "/gemini-chat")
	}

	// anonymous callers see builtins and may chat without persistence
	open := r.Group("/")
	open.Use(middleware.AuthOptional(cfg.JWTSecret), h.EnsureProfile())
	open.GET("/personas", h.ListPersonas)
	open.GET("/personas/:id", h.GetPersona)
	open.POST("/chat/sessions", h.CreateChatSession)
	open.GET("/chat/sessions/:session_id", h.GetChatSession)
	open.DELETE("/chat/sessions/:session_id", h.CloseChatSession)
	open.POST("/chat/messages", h.SendChatMessage)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret), h.EnsureProfile())
	authGroup.GET("/me", h.Me)
	authGroup.POST("/personas", h.CreatePersona)
	authGroup.GET("/personas/events", h.PersonaEvents)
	authGroup.GET("/conversations", h.ListConversations)
	return r
}
