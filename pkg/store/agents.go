package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentkit/orchestrator/pkg/agent"
)

// agentRow mirrors the agents table, grounded on the teacher's taskRow
// pattern: JSON-shaped columns are marshaled to/from TEXT at this
// boundary so the rest of the package works with agent.Definition.
type agentRow struct {
	AgentID            string
	Name               string
	Version            int
	IsActive           bool
	Description        string
	Personality        string
	Expertise          string
	CommunicationStyle string
	Language           string
	CustomInstructions string
	ModelID            string
	Temperature        float64
	MaxOutputTokens    int
	AgentType          string
	Planner            string
	SubAgentIDs        string
	ToolNames          string
	UsageCount         int64
	CreatedAt          time.Time
	LastUsedAt         sql.NullTime
	Metadata           string
}

func toAgentRow(d *agent.Definition) (agentRow, error) {
	expertise, err := json.Marshal(d.Expertise)
	if err != nil {
		return agentRow{}, err
	}
	subs, err := json.Marshal(d.SubAgentIDs)
	if err != nil {
		return agentRow{}, err
	}
	tools, err := json.Marshal(d.ToolNames)
	if err != nil {
		return agentRow{}, err
	}
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return agentRow{}, err
	}
	var lastUsed sql.NullTime
	if !d.LastUsedAt.IsZero() {
		lastUsed = sql.NullTime{Time: d.LastUsedAt, Valid: true}
	}
	return agentRow{
		AgentID:            d.AgentID,
		Name:               d.Name,
		Version:            d.Version,
		IsActive:           d.IsActive,
		Description:        d.Description,
		Personality:        d.Personality,
		Expertise:          string(expertise),
		CommunicationStyle: d.CommunicationStyle,
		Language:           d.Language,
		CustomInstructions: d.CustomInstructions,
		ModelID:            d.ModelID,
		Temperature:        d.Temperature,
		MaxOutputTokens:    d.MaxOutputTokens,
		AgentType:          string(d.AgentType),
		Planner:            string(d.Planner),
		SubAgentIDs:        string(subs),
		ToolNames:          string(tools),
		UsageCount:         d.UsageCount,
		CreatedAt:          d.CreatedAt,
		LastUsedAt:         lastUsed,
		Metadata:           string(meta),
	}, nil
}

func (r agentRow) toDefinition() (*agent.Definition, error) {
	d := &agent.Definition{
		AgentID:             r.AgentID,
		Name:                r.Name,
		Version:             r.Version,
		IsActive:            r.IsActive,
		Description:         r.Description,
		Personality:         r.Personality,
		CommunicationStyle:  r.CommunicationStyle,
		Language:            r.Language,
		CustomInstructions:  r.CustomInstructions,
		ModelID:             r.ModelID,
		Temperature:         r.Temperature,
		MaxOutputTokens:     r.MaxOutputTokens,
		AgentType:           agent.AgentType(r.AgentType),
		Planner:             agent.Planner(r.Planner),
		UsageCount:          r.UsageCount,
		CreatedAt:           r.CreatedAt,
	}
	if r.LastUsedAt.Valid {
		d.LastUsedAt = r.LastUsedAt.Time
	}
	if err := json.Unmarshal([]byte(r.Expertise), &d.Expertise); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(r.SubAgentIDs), &d.SubAgentIDs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(r.ToolNames), &d.ToolNames); err != nil {
		return nil, err
	}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &d.Metadata); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// SaveAgent inserts a new agent row.
func (s *Store) SaveAgent(ctx context.Context, d *agent.Definition) error {
	if s.degraded {
		return nil
	}
	row, err := toAgentRow(d)
	if err != nil {
		return fmt.Errorf("store: encode agent: %w", err)
	}
	q := s.rebind(`INSERT INTO agents (
		agent_id, name, version, is_active, description, personality, expertise,
		communication_style, language, custom_instructions, model_id, temperature,
		max_output_tokens, agent_type, planner, sub_agent_ids, tool_names,
		usage_count, created_at, last_used_at, metadata
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	_, err = s.db.ExecContext(ctx, q,
		row.AgentID, row.Name, row.Version, row.IsActive, row.Description, row.Personality, row.Expertise,
		row.CommunicationStyle, row.Language, row.CustomInstructions, row.ModelID, row.Temperature,
		row.MaxOutputTokens, row.AgentType, row.Planner, row.SubAgentIDs, row.ToolNames,
		row.UsageCount, row.CreatedAt, row.LastUsedAt, row.Metadata)
	if err != nil {
		return fmt.Errorf("store: save agent: %w", err)
	}
	return nil
}

// GetAgent returns the agent row for agentID, or (nil, nil) if absent.
func (s *Store) GetAgent(ctx context.Context, agentID string) (*agent.Definition, error) {
	if s.degraded {
		return nil, nil
	}
	q := s.rebind(`SELECT agent_id, name, version, is_active, description, personality, expertise,
		communication_style, language, custom_instructions, model_id, temperature,
		max_output_tokens, agent_type, planner, sub_agent_ids, tool_names,
		usage_count, created_at, last_used_at, metadata FROM agents WHERE agent_id = ?`)
	row := s.db.QueryRowContext(ctx, q, agentID)
	d, err := scanAgentRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get agent: %w", err)
	}
	return d, nil
}

// ListAgents lists agent rows, optionally restricted to is_active=true,
// ordered by created_at for stable pagination.
func (s *Store) ListAgents(ctx context.Context, activeOnly bool, limit, offset int) ([]*agent.Definition, error) {
	if s.degraded {
		return nil, nil
	}
	q := `SELECT agent_id, name, version, is_active, description, personality, expertise,
		communication_style, language, custom_instructions, model_id, temperature,
		max_output_tokens, agent_type, planner, sub_agent_ids, tool_names,
		usage_count, created_at, last_used_at, metadata FROM agents`
	args := []any{}
	if activeOnly {
		q += " WHERE is_active = ?"
		args = append(args, true)
	}
	q += " ORDER BY created_at ASC"
	if limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list agents: %w", err)
	}
	defer rows.Close()

	var out []*agent.Definition
	for rows.Next() {
		d, err := scanAgentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan agent: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateAgent overwrites every column for agentID.
func (s *Store) UpdateAgent(ctx context.Context, d *agent.Definition) error {
	if s.degraded {
		return nil
	}
	row, err := toAgentRow(d)
	if err != nil {
		return fmt.Errorf("store: encode agent: %w", err)
	}
	q := s.rebind(`UPDATE agents SET name=?, version=?, is_active=?, description=?, personality=?,
		expertise=?, communication_style=?, language=?, custom_instructions=?, model_id=?,
		temperature=?, max_output_tokens=?, agent_type=?, planner=?, sub_agent_ids=?,
		tool_names=?, usage_count=?, last_used_at=?, metadata=? WHERE agent_id=?`)
	_, err = s.db.ExecContext(ctx, q,
		row.Name, row.Version, row.IsActive, row.Description, row.Personality,
		row.Expertise, row.CommunicationStyle, row.Language, row.CustomInstructions, row.ModelID,
		row.Temperature, row.MaxOutputTokens, row.AgentType, row.Planner, row.SubAgentIDs,
		row.ToolNames, row.UsageCount, row.LastUsedAt, row.Metadata, row.AgentID)
	if err != nil {
		return fmt.Errorf("store: update agent: %w", err)
	}
	return nil
}

// DeleteAgent soft-deletes by flipping is_active to false.
func (s *Store) DeleteAgent(ctx context.Context, agentID string) error {
	if s.degraded {
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE agents SET is_active = ? WHERE agent_id = ?`), false, agentID)
	if err != nil {
		return fmt.Errorf("store: delete agent: %w", err)
	}
	return nil
}

// BumpAgentUsage increments usage_count and stamps last_used_at.
func (s *Store) BumpAgentUsage(ctx context.Context, agentID string) error {
	if s.degraded {
		return nil
	}
	q := s.rebind(`UPDATE agents SET usage_count = usage_count + 1, last_used_at = ? WHERE agent_id = ?`)
	_, err := s.db.ExecContext(ctx, q, time.Now(), agentID)
	if err != nil {
		return fmt.Errorf("store: bump agent usage: %w", err)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanAgentRow.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgentRow(rs rowScanner) (*agent.Definition, error) {
	var row agentRow
	if err := rs.Scan(
		&row.AgentID, &row.Name, &row.Version, &row.IsActive, &row.Description, &row.Personality, &row.Expertise,
		&row.CommunicationStyle, &row.Language, &row.CustomInstructions, &row.ModelID, &row.Temperature,
		&row.MaxOutputTokens, &row.AgentType, &row.Planner, &row.SubAgentIDs, &row.ToolNames,
		&row.UsageCount, &row.CreatedAt, &row.LastUsedAt, &row.Metadata,
	); err != nil {
		return nil, err
	}
	return row.toDefinition()
}
