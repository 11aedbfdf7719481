package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/personapal/internal/common"
	"github.com/suPer8Hu/personapal/internal/httpapi/middleware"
	"github.com/suPer8Hu/personapal/internal/persona"
)

// redirectHome is the hint clients follow when a persona cannot be shown.
var redirectHome = gin.H{"redirect": "/"}

func (h *Handler) ListPersonas(c *gin.Context) {
	uid := middleware.UserID(c)
	list, err := h.Personas.ListForUser(c.Request.Context(), uid)
	if err != nil {
		log.Printf("[ListPersonas] failed uid=%s err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{"personas": list})
}

func (h *Handler) GetPersona(c *gin.Context) {
	uid := middleware.UserID(c)
	p, err := h.Personas.Resolve(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		if errors.Is(err, persona.ErrNotFound) {
			common.FailWith(c, http.StatusNotFound, 40401, "persona not found", redirectHome)
			return
		}
		log.Printf("[GetPersona] failed uid=%s id=%s err=%v", uid, c.Param("id"), err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, gin.H{"persona": p})
}

func (h *Handler) CreatePersona(c *gin.Context) {
	uid := middleware.UserID(c)

	var req persona.Draft
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	p, err := h.Personas.Create(c.Request.Context(), uid, req)
	if err != nil {
		var verr *persona.ValidationError
		if errors.As(err, &verr) {
			common.Fail(c, http.StatusBadRequest, 10002, verr.Error())
			return
		}
		log.Printf("[CreatePersona] failed uid=%s err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create persona")
		return
	}
	common.OK(c, gin.H{"persona": p})
}

// PersonaEvents streams personas created by the caller as SSE.
func (h *Handler) PersonaEvents(c *gin.Context) {
	uid := middleware.UserID(c)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		common.Fail(c, http.StatusInternalServerError, 50003, "streaming unsupported")
		return
	}

	created := make(chan persona.Persona, 8)
	unsubscribe := h.Personas.Subscribe(uid, func(p persona.Persona) {
		select {
		case created <- p:
		default:
			log.Printf("[PersonaEvents] slow subscriber, dropping event uid=%s id=%s", uid, p.ID)
		}
	})
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, b)
		flusher.Flush()
	}

	writeJSON("ready", gin.H{"type": "ready"})

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case p := <-created:
			writeJSON("persona_created", gin.H{"type": "persona_created", "persona": p})
		case <-ticker.C:
			writeJSON("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})
		case <-ctx.Done():
			return
		}
	}
}
