package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/orchestrator"
)

// agentDTO mirrors spec §3's AgentDefinition wire shape for
// POST/PUT /agents bodies.
type agentDTO struct {
	Name                string         `json:"name"`
	Description         string         `json:"description,omitempty"`
	Personality         string         `json:"personality,omitempty"`
	Expertise           []string       `json:"expertise,omitempty"`
	CommunicationStyle  string         `json:"communication_style,omitempty"`
	Language            string         `json:"language,omitempty"`
	CustomInstructions  string         `json:"custom_instructions,omitempty"`
	ModelID             string         `json:"model_id,omitempty"`
	Temperature         float64        `json:"temperature,omitempty"`
	MaxOutputTokens     int            `json:"max_output_tokens,omitempty"`
	AgentType           string         `json:"agent_type,omitempty"`
	Planner             string         `json:"planner,omitempty"`
	SubAgentIDs         []string       `json:"sub_agent_ids,omitempty"`
	ToolNames           []string       `json:"tool_names,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

func (d agentDTO) toDefinition() *agent.Definition {
	return &agent.Definition{
		Name:                d.Name,
		Description:         d.Description,
		Personality:         d.Personality,
		Expertise:           d.Expertise,
		CommunicationStyle:  d.CommunicationStyle,
		Language:            d.Language,
		CustomInstructions:  d.CustomInstructions,
		ModelID:             d.ModelID,
		Temperature:         d.Temperature,
		MaxOutputTokens:     d.MaxOutputTokens,
		AgentType:           agent.AgentType(d.AgentType),
		Planner:             agent.Planner(d.Planner),
		SubAgentIDs:         d.SubAgentIDs,
		ToolNames:           d.ToolNames,
		Metadata:            d.Metadata,
	}
}

func definitionDTO(d *agent.Definition) map[string]any {
	return map[string]any{
		"agent_id":            d.AgentID,
		"name":                d.Name,
		"version":             d.Version,
		"is_active":           d.IsActive,
		"description":         d.Description,
		"personality":         d.Personality,
		"expertise":           d.Expertise,
		"communication_style": d.CommunicationStyle,
		"language":            d.Language,
		"custom_instructions": d.CustomInstructions,
		"model_id":            d.ModelID,
		"temperature":         d.Temperature,
		"max_output_tokens":   d.MaxOutputTokens,
		"agent_type":          d.AgentType,
		"planner":             d.Planner,
		"sub_agent_ids":       d.SubAgentIDs,
		"tool_names":          d.ToolNames,
		"usage_count":         d.UsageCount,
		"created_at":          d.CreatedAt,
		"last_used_at":        d.LastUsedAt,
		"metadata":            d.Metadata,
	}
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var dto agentDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := s.rt.Agents.Create(r.Context(), dto.toDefinition())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"agent_id": id})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active_only") != "false"
	limit, offset := pagination(r)
	defs, err := s.rt.Agents.List(r.Context(), activeOnly, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]map[string]any, len(defs))
	for i, d := range defs {
		out[i] = definitionDTO(d)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.rt.Agents.GetDefinition(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, definitionDTO(d))
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dto agentDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.rt.Agents.Update(r.Context(), id, dto.toDefinition()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"agent_id": id})
}

// configPatchDTO mirrors PUT /agents/{id}/config's partial-update body
// (spec §6: "Null value clears a field"). encoding/json decodes both an
// absent key and a literal JSON `null` into a nil pointer, so this
// module can't tell the two apart -- either way the field is left
// untouched. Clearing a field uses the empty-value convention instead:
// `tool_names: []` clears the tool set; agent_type/planner have no
// clear path since AgentType/Planner are non-pointer enum strings on
// Definition with no meaningful "unset" value.
type configPatchDTO struct {
	AgentType *string   `json:"agent_type"`
	Planner   *string   `json:"planner"`
	ToolNames *[]string `json:"tool_names"`
}

func (s *Server) handleUpdateAgentConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dto configPatchDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	patch := agent.Patch{}
	if dto.AgentType != nil {
		t := agent.AgentType(*dto.AgentType)
		patch.AgentType = &t
	}
	if dto.Planner != nil {
		p := agent.Planner(*dto.Planner)
		patch.Planner = &p
	}
	patch.ToolNames = dto.ToolNames
	if err := s.rt.Agents.UpdateConfig(r.Context(), id, patch); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"agent_id": id})
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.rt.Agents.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type toolNamesDTO struct {
	ToolNames []string `json:"tool_names"`
}

func (s *Server) handleAttachTools(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dto toolNamesDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.rt.Agents.AttachTools(r.Context(), id, dto.ToolNames); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"agent_id": id})
}

func (s *Server) handleDetachTools(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dto toolNamesDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.rt.Agents.DetachTools(r.Context(), id, dto.ToolNames); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"agent_id": id})
}

func (s *Server) handleStopAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.rt.StopAgent(id)
	writeJSON(w, http.StatusOK, map[string]string{"agent_id": id, "status": "stopped"})
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

// writeDomainError maps an orchestrator sentinel to its HTTP status,
// grounded on spec §7's failure-class table.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrValidation),
		errors.Is(err, orchestrator.ErrToolUnavailable),
		errors.Is(err, orchestrator.ErrCyclicAgentTool),
		errors.Is(err, orchestrator.ErrSubAgentUnavailable):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orchestrator.ErrCancelled):
		writeError(w, http.StatusRequestTimeout, err.Error())
	case errors.Is(err, orchestrator.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
