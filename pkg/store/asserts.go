package store

import (
	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/convo"
)

var _ agent.DefinitionStore = (*Store)(nil)
var _ convo.Store = (*Store)(nil)
