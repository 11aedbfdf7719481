package handlers

import (
	"github.com/suPer8Hu/personapal/internal/chat"
	"github.com/suPer8Hu/personapal/internal/config"
	"github.com/suPer8Hu/personapal/internal/persona"
	"github.com/suPer8Hu/personapal/internal/profile"
)

type Handler struct {
	Cfg         config.Config
	Personas    *persona.Repository
	Hub         *chat.Hub
	Transcripts *chat.Store
	Profiles    *profile.Service
}

func NewHandler(cfg config.Config, personas *persona.Repository, hub *chat.Hub, transcripts *chat.Store, profiles *profile.Service) *Handler {
	return &Handler{
		Cfg:         cfg,
		Personas:    personas,
		Hub:         hub,
		Transcripts: transcripts,
		Profiles:    profiles,
	}
}
