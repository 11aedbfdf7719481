package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/personapal/internal/chat"
	"github.com/suPer8Hu/personapal/internal/common"
	"github.com/suPer8Hu/personapal/internal/httpapi/middleware"
)

// SessionTokenHeader carries the token that proves ownership of an
// anonymous session. Signed-in callers are matched on their user id.
const SessionTokenHeader = "X-Session-Token"

func sessionToken(c *gin.Context) string {
	return c.GetHeader(SessionTokenHeader)
}

type createSessionReq struct {
	PersonaID string `json:"persona_id" binding:"required"`
}

func (h *Handler) CreateChatSession(c *gin.Context) {
	uid := middleware.UserID(c)

	var req createSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	s, err := h.Hub.Open(c.Request.Context(), uid, req.PersonaID)
	if err != nil {
		if errors.Is(err, chat.ErrPersonaNotFound) {
			common.FailWith(c, http.StatusNotFound, 40401, "persona not found", redirectHome)
			return
		}
		log.Printf("[CreateChatSession] open failed uid=%s persona=%s err=%v", uid, req.PersonaID, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}
	common.OK(c, s.Snapshot(c.Request.Context()))
}

func (h *Handler) GetChatSession(c *gin.Context) {
	s, err := h.Hub.Get(c.Param("session_id"), middleware.UserID(c), sessionToken(c))
	if err != nil {
		common.Fail(c, http.StatusNotFound, 40402, "session not found")
		return
	}
	common.OK(c, s.Snapshot(c.Request.Context()))
}

type sendMessageReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	uid := middleware.UserID(c)

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	s, err := h.Hub.Get(req.SessionID, uid, sessionToken(c))
	if err != nil {
		common.Fail(c, http.StatusNotFound, 40402, "session not found")
		return
	}

	turn, err := s.Send(c.Request.Context(), req.Message)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrEmptyMessage):
		common.Fail(c, http.StatusBadRequest, 10003, "message is empty")
		return
	case errors.Is(err, chat.ErrBusy):
		common.Fail(c, http.StatusConflict, 40901, "a reply is already in progress")
		return
	case errors.Is(err, chat.ErrNotReady):
		common.Fail(c, http.StatusConflict, 40902, "session is not ready")
		return
	case errors.Is(err, chat.ErrSessionNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "session not found")
		return
	default:
		log.Printf("[SendChatMessage] failed uid=%s session_id=%s err=%v", uid, req.SessionID, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{
		"session_id":    req.SessionID,
		"reply":         turn,
		"fallback_mode": h.Hub.FallbackMode(),
	})
}

func (h *Handler) CloseChatSession(c *gin.Context) {
	if err := h.Hub.Close(c.Param("session_id"), middleware.UserID(c), sessionToken(c)); err != nil {
		common.Fail(c, http.StatusNotFound, 40402, "session not found")
		return
	}
	common.OK(c, gin.H{"closed": true})
}

func (h *Handler) ListConversations(c *gin.Context) {
	uid := middleware.UserID(c)
	list, err := h.Transcripts.ListTranscripts(c.Request.Context(), uid)
	if err != nil {
		log.Printf("[ListConversations] failed uid=%s err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list conversations")
		return
	}
	common.OK(c, gin.H{
		"conversations": list,
		"count":         len(list),
	})
}
