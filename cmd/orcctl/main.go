// Command orcctl is the CLI entry point for this orchestration runtime,
// grounded on the teacher's cmd/hector/main.go: a kong.CLI struct with
// a primary "serve" subcommand plus "migrate", "agent" and "version",
// and a logger initialized from CLI flags before any config file is
// read.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"
)

// CLI mirrors the teacher's top-level CLI struct shape: one struct of
// subcommands plus logger flags that apply regardless of which
// subcommand runs.
type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP/SSE server."`
	Migrate MigrateCmd `cmd:"" help:"Apply/verify the persistence schema for the configured database."`
	Agent   AgentCmd   `cmd:"" help:"Manage agent definitions."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to YAML config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (text or json)." default:"text"`
}

// VersionCmd prints the build version, same shape as the teacher's.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println("orcctl (dev build)")
	return nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("orcctl"),
		kong.Description("Agent/team orchestration runtime"),
		kong.UsageOnError(),
	)

	initLogger(cli.LogLevel, cli.LogFormat)

	err := kctx.Run(&cli)
	kctx.FatalIfErrorf(err)
}
