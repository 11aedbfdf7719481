package relay

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/personapal/internal/ai"
)

const (
	Ack        = "I understand. I'll respond as this persona."
	BlankReply = "I apologize, but I'm having trouble generating a response right now. Please try again."

	errNoKey = "Gemini API key not configured"
)

var allowHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	SystemPrompt string        `json:"systemPrompt"`
	Messages     []wireMessage `json:"messages"`
	PersonaName  string        `json:"personaName"`
}

type chatResponse struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Handler serves the gemini-chat relay endpoint.
type Handler struct {
	provider ai.Provider // nil when no key is configured
	timeout  time.Duration
}

func NewHandler(provider ai.Provider, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{provider: provider, timeout: timeout}
}

// CORS opens the relay to any origin with the headers browser clients send.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodPost, http.MethodOptions},
		AllowHeaders:    allowHeaders,
	})
}

// Register mounts POST and OPTIONS for path on g.
func (h *Handler) Register(g gin.IRoutes, path string) {
	g.OPTIONS(path, h.Preflight)
	g.POST(path, h.Chat)
}

// setCORSHeaders covers what CORS() skips: the cors middleware only answers
// requests that carry an Origin header, while the relay contract promises
// these headers on every response, same-origin and server-to-server included.
func setCORSHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", strings.Join(allowHeaders, ", "))
}

func (h *Handler) Preflight(c *gin.Context) {
	setCORSHeaders(c)
	c.Status(http.StatusOK)
}

func (h *Handler) Chat(c *gin.Context) {
	setCORSHeaders(c)

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusInternalServerError, chatResponse{Error: err.Error()})
		return
	}
	if h.provider == nil {
		c.JSON(http.StatusInternalServerError, chatResponse{Error: errNoKey})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	start := time.Now()
	out, err := h.provider.Chat(ctx, BuildMessages(req.SystemPrompt, req.Messages))
	if errors.Is(err, ai.ErrEmptyResponse) || (err == nil && strings.TrimSpace(out) == "") {
		log.Printf("[Relay] empty response persona=%q turns=%d", req.PersonaName, len(req.Messages))
		c.JSON(http.StatusOK, chatResponse{Response: BlankReply})
		return
	}
	if err != nil {
		log.Printf("[Relay] upstream failed persona=%q turns=%d cost=%s err=%v", req.PersonaName, len(req.Messages), time.Since(start), err)
		c.JSON(http.StatusInternalServerError, chatResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, chatResponse{Response: strings.TrimSpace(out)})
}

// BuildMessages puts the system prompt and a model acknowledgement in front
// of the history. Any role other than "user" is sent as the model's turn.
func BuildMessages(systemPrompt string, history []wireMessage) []ai.Message {
	out := make([]ai.Message, 0, len(history)+2)
	out = append(out,
		ai.Message{Role: ai.RoleUser, Content: systemPrompt},
		ai.Message{Role: ai.RoleAssistant, Content: Ack},
	)
	for _, m := range history {
		role := ai.RoleAssistant
		if m.Role == ai.RoleUser {
			role = ai.RoleUser
		}
		out = append(out, ai.Message{Role: role, Content: m.Content})
	}
	return out
}
