package config

import (
	"encoding/json"
	"net/http"

	"financial_extractor/pkg/api/respond"
	"financial_extractor/pkg/core/agent"
)

type Response struct {
	ActiveProvider string               `json:"active_provider"`
	Available      []agent.ProviderInfo `json:"available"`
	Snapshots      bool                 `json:"snapshots"`
}

type SwitchRequest struct {
	Provider string `json:"provider"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	AgentMgr  *agent.Manager
	Snapshots bool
}

// NewHandler creates a new config handler
func NewHandler(agentMgr *agent.Manager, snapshots bool) *Handler {
	return &Handler{
		AgentMgr:  agentMgr,
		Snapshots: snapshots,
	}
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, Response{
		ActiveProvider: h.AgentMgr.GetActiveProvider(),
		Available:      h.AgentMgr.Available(),
		Snapshots:      h.Snapshots,
	})
}

func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.AgentMgr.SetGlobalProvider(req.Provider); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	h.HandleConfig(w, r)
}
