package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentkit/orchestrator/pkg/authn"
	"github.com/agentkit/orchestrator/pkg/hconfig"
	"github.com/agentkit/orchestrator/pkg/httpapi"
	"github.com/agentkit/orchestrator/pkg/obslog"
	"github.com/agentkit/orchestrator/pkg/orchestrator"
)

// ServeCmd starts the HTTP/SSE server, grounded on the teacher's
// cmd/hector/serve.go ServeCmd: load config, build the runtime, wire
// the HTTP surface, print a short startup banner, then block until a
// shutdown signal.
type ServeCmd struct {
	Port  int  `help:"Override server.port from the config file."`
	Watch bool `help:"Watch the config file and hot-reload auth/log settings on change."`
}

// Run builds and serves the runtime. cli carries --config/--log-level
// set on the parent command, matching the teacher's Run(cli *CLI)
// convention for subcommands that need top-level flags.
func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down...")
		cancel()
	}()

	loader := hconfig.NewLoader(cli.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("orcctl: load config: %w", err)
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	var metrics *obslog.Metrics
	if cfg.Metrics.Enabled {
		metrics = obslog.New(cfg.Metrics.Namespace)
	}

	auth, apiKeys, err := buildAuthenticator(ctx, &cfg.Auth)
	if err != nil {
		return fmt.Errorf("orcctl: build authenticator: %w", err)
	}

	rt := orchestrator.New(orchestrator.Config{DSN: cfg.Database.DSN, Metrics: metrics})
	defer rt.Close()

	srv := httpapi.NewServer(rt, auth)

	if c.Watch && cli.Config != "" {
		go func() {
			err := loader.Watch(ctx, func(newCfg *hconfig.Config) {
				slog.Info("config file changed, reloading auth and log settings")
				initLogger(newCfg.Logger.Level, newCfg.Logger.Format)
				reloadAPIKeys(apiKeys, &newCfg.Auth)
			})
			if err != nil && ctx.Err() == nil {
				slog.Error("config watch stopped", "error", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE responses must not be cut off by a fixed write deadline.
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("orchestrator listening on http://%s\n", cfg.Server.Addr())
	if metrics != nil {
		fmt.Printf("metrics:            http://%s/metrics\n", cfg.Server.Addr())
	}
	if cfg.Database.DSN == "" {
		fmt.Println("persistence:        degraded (no database configured)")
	}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("orcctl: serve: %w", err)
	}
	return nil
}

// buildAuthenticator constructs an *authn.Authenticator from cfg, or
// nil if neither JWT nor API-key auth is configured (an unauthenticated
// local/dev posture spec.md §6 leaves valid). The returned
// MemoryAPIKeyStore is handed back so config-watch reloads can update
// it in place.
func buildAuthenticator(ctx context.Context, cfg *hconfig.AuthConfig) (*authn.Authenticator, *authn.MemoryAPIKeyStore, error) {
	if cfg.JWKSURL == "" && len(cfg.APIKeys) == 0 {
		return nil, nil, nil
	}

	a := &authn.Authenticator{}

	if cfg.JWKSURL != "" {
		validator, err := authn.NewJWTValidator(ctx, cfg.JWKSURL, cfg.Issuer, cfg.Audience)
		if err != nil {
			return nil, nil, err
		}
		a.JWT = validator
	}

	keys := authn.NewMemoryAPIKeyStore(apiKeyRecords(cfg))
	a.APIKeys = keys
	return a, keys, nil
}

func apiKeyRecords(cfg *hconfig.AuthConfig) map[string]authn.APIKeyRecord {
	out := make(map[string]authn.APIKeyRecord, len(cfg.APIKeys))
	for key, rec := range cfg.APIKeys {
		out[key] = authn.APIKeyRecord{Owner: rec.Owner, Role: rec.Role}
	}
	return out
}

// reloadAPIKeys adds or overwrites every key in newCfg's set in store;
// keys that are in store but absent from newCfg are not removed. store is
// nil when buildAuthenticator never constructed one (no auth
// configured at startup); a config-watch reload cannot retroactively
// enable auth without restarting the auth middleware's wiring, so that
// case is a documented no-op.
func reloadAPIKeys(store *authn.MemoryAPIKeyStore, newCfg *hconfig.AuthConfig) {
	if store == nil {
		return
	}
	for key, rec := range apiKeyRecords(newCfg) {
		store.Set(key, rec)
	}
}
