package store

import "context"

// schemaSQL is one dialect-portable schema string shared by all three
// supported databases, grounded on the teacher's single createTableSQL
// constant in pkg/agent/task_service_sql.go. JSON-shaped columns
// (expertise, sub_agent_ids, tool_names, metadata, tool_args) are stored
// as TEXT and marshaled/unmarshaled at the row<->struct boundary.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS agents (
    agent_id VARCHAR(255) PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    version INTEGER NOT NULL,
    is_active BOOLEAN NOT NULL,
    description TEXT,
    personality TEXT,
    expertise TEXT,
    communication_style VARCHAR(255),
    language VARCHAR(64),
    custom_instructions TEXT,
    model_id VARCHAR(255),
    temperature REAL,
    max_output_tokens INTEGER,
    agent_type VARCHAR(32),
    planner VARCHAR(32),
    sub_agent_ids TEXT,
    tool_names TEXT,
    usage_count BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    last_used_at TIMESTAMP,
    metadata TEXT
);

CREATE TABLE IF NOT EXISTS conversations (
    session_id VARCHAR(255) PRIMARY KEY,
    user_id VARCHAR(255) NOT NULL,
    agent_id VARCHAR(255) NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    is_active BOOLEAN NOT NULL,
    message_count INTEGER NOT NULL DEFAULT 0,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_conversations_agent_id ON conversations(agent_id);

CREATE TABLE IF NOT EXISTS messages (
    message_id VARCHAR(255) PRIMARY KEY,
    session_id VARCHAR(255) NOT NULL,
    role VARCHAR(32) NOT NULL,
    content TEXT,
    message_type VARCHAR(32),
    tool_name VARCHAR(255),
    tool_args TEXT,
    tool_call_id VARCHAR(255),
    is_streaming BOOLEAN NOT NULL DEFAULT FALSE,
    is_complete BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id);
`

func (s *Store) bootstrapSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}
