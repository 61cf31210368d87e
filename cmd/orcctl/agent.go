package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/agentkit/orchestrator/pkg/agent"
	"github.com/agentkit/orchestrator/pkg/hconfig"
	"github.com/agentkit/orchestrator/pkg/orchestrator"
	"github.com/agentkit/orchestrator/pkg/toolkit"
)

// AgentCmd groups the agent-management subcommands, grounded on the
// teacher's InfoCmd (an agent-scoped read path wired straight to
// pkg/config) but extended to writes since this runtime's agent
// definitions live in pkg/store rather than a static config file.
type AgentCmd struct {
	Create     AgentCreateCmd     `cmd:"" help:"Register a new agent definition."`
	List       AgentListCmd       `cmd:"" help:"List registered agent definitions."`
	AttachTool AgentAttachToolCmd `cmd:"" name:"attach-tool" help:"Attach a built-in tool to an agent."`
}

func openLocalRuntime(cli *CLI) (*orchestrator.Runtime, error) {
	cfg, err := hconfig.NewLoader(cli.Config).Load()
	if err != nil {
		return nil, fmt.Errorf("orcctl: load config: %w", err)
	}
	rt := orchestrator.New(orchestrator.Config{DSN: cfg.Database.DSN})
	if rt.Store.Degraded() && cfg.Database.DSN != "" {
		fmt.Fprintf(os.Stderr, "warning: store is degraded, agent changes will not persist\n")
	}
	return rt, nil
}

// AgentCreateCmd registers a new agent definition with the tool and
// model bindings given on the command line.
type AgentCreateCmd struct {
	Name        string  `arg:"" help:"Agent name."`
	ModelID     string  `name:"model-id" help:"Model identifier the agent resolves to at runtime."`
	Tools       string  `help:"Comma-separated list of tool names to attach at creation." placeholder:"TOOL1,TOOL2"`
	AgentType   string  `name:"type" help:"Agent composition type (standard, react, sequential, parallel, hierarchical, loop)." default:"standard"`
	Temperature float64 `help:"Sampling temperature." default:"0.7"`
}

func (c *AgentCreateCmd) Run(cli *CLI) error {
	rt, err := openLocalRuntime(cli)
	if err != nil {
		return err
	}
	defer rt.Close()

	def := &agent.Definition{
		Name:        c.Name,
		ModelID:     c.ModelID,
		AgentType:   agent.AgentType(c.AgentType),
		Temperature: c.Temperature,
		ToolNames:   splitCSV(c.Tools),
	}

	id, err := rt.Agents.Create(context.Background(), def)
	if err != nil {
		return fmt.Errorf("orcctl: create agent: %w", err)
	}
	fmt.Println(id)
	return nil
}

// AgentListCmd prints every registered agent definition as JSON, one
// object per line, for easy piping into jq.
type AgentListCmd struct {
	ActiveOnly bool `name:"active-only" help:"Only list active agents."`
}

func (c *AgentListCmd) Run(cli *CLI) error {
	rt, err := openLocalRuntime(cli)
	if err != nil {
		return err
	}
	defer rt.Close()

	defs, err := rt.Agents.List(context.Background(), c.ActiveOnly, 0, 0)
	if err != nil {
		return fmt.Errorf("orcctl: list agents: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, d := range defs {
		if err := enc.Encode(d); err != nil {
			return err
		}
	}
	return nil
}

// AgentAttachToolCmd attaches one of the built-in tool descriptors to
// an existing agent definition.
type AgentAttachToolCmd struct {
	AgentID string `arg:"" name:"agent-id" help:"Agent ID to modify."`
	Tool    string `arg:"" help:"Tool name to attach."`
}

func (c *AgentAttachToolCmd) Run(cli *CLI) error {
	rt, err := openLocalRuntime(cli)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, ok := rt.Tools.Get(c.Tool); !ok {
		known := rt.Tools.List(toolkit.Filter{})
		names := make([]string, 0, len(known))
		for _, d := range known {
			names = append(names, d.Name)
		}
		return fmt.Errorf("orcctl: unknown tool %q, known tools: %s", c.Tool, strings.Join(names, ", "))
	}

	if err := rt.Agents.AttachTools(context.Background(), c.AgentID, []string{c.Tool}); err != nil {
		return fmt.Errorf("orcctl: attach tool: %w", err)
	}
	fmt.Printf("attached %s to %s\n", c.Tool, c.AgentID)
	return nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
