package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridwright/gridwright/internal/config"
	"github.com/gridwright/gridwright/internal/observability"
	"github.com/gridwright/gridwright/internal/server"
	"github.com/gridwright/gridwright/internal/server/handlers"
	"github.com/gridwright/gridwright/pkg/auditstore"
	"github.com/gridwright/gridwright/pkg/rules"
	"github.com/gridwright/gridwright/pkg/suggest"
	"github.com/gridwright/gridwright/pkg/workspace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run the HTTP server exposing dataset upload, cell editing, the
error map, AI proposals, and export.

The workspace is restored from the configured snapshot on startup and
saved on shutdown.

Example:
  gridwright serve
  gridwright serve --port 9000
  gridwright serve --rules rules.yaml`,
	RunE: runServe,
}

var (
	serveHost      string
	servePort      int
	serveRulesPath string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Override listen host")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override listen port")
	serveCmd.Flags().StringVar(&serveRulesPath, "rules", "", "Ruleset file to serve and export")
}

// signalHealthChecker reports liveness of the signal handling loop. The
// process answering at all means the loop is installed.
type signalHealthChecker struct{}

func (signalHealthChecker) CheckHealth(ctx context.Context) error {
	return nil
}

// workspaceHealthChecker verifies the workspace is responsive.
type workspaceHealthChecker struct {
	ws *workspace.Workspace
}

func (c workspaceHealthChecker) CheckHealth(ctx context.Context) error {
	if c.ws == nil {
		return fmt.Errorf("workspace not initialized")
	}
	// Taking the error map exercises the workspace lock.
	_ = c.ws.Errors()
	return nil
}

// auditHealthChecker verifies the audit store connection.
type auditHealthChecker struct {
	store *auditstore.Store
}

func (c auditHealthChecker) CheckHealth(ctx context.Context) error {
	if c.store == nil {
		return fmt.Errorf("audit store not initialized")
	}
	_, err := c.store.Count(ctx, auditstore.Query{})
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()

	if err := observability.InitServerLogger(cfg.Logging.Level, cfg.Logging.Profile); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging config", err)
	}

	host := cfg.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []workspace.Option{
		workspace.WithLogger(observability.ServerLogger),
		workspace.WithDebounce(cfg.Workspace.Debounce),
	}

	var audit *auditstore.Store
	if cfg.Audit.Enabled {
		var err error
		audit, err = auditstore.Open(ctx, auditstore.Config{Path: cfg.Audit.Path})
		if err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to open audit store", err)
		}
		defer func() { _ = audit.Close() }()
		opts = append(opts, workspace.WithRecorder(audit))
	}

	ws := workspace.New(opts...)
	defer ws.Close()

	if cfg.Workspace.SnapshotPath != "" {
		if err := ws.Load(cfg.Workspace.SnapshotPath); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return exitError(foundry.ExitFileReadError, "Failed to load workspace snapshot", err)
			}
			observability.ServerLogger.Info("no snapshot found, starting empty",
				zap.String("path", cfg.Workspace.SnapshotPath))
		}
	}

	var producer suggest.Producer = suggest.Null{}
	if cfg.AI.APIKey != "" {
		gemini, err := suggest.NewGemini(ctx, suggest.GeminiConfig{
			APIKey:            cfg.AI.APIKey,
			Model:             cfg.AI.Model,
			RequestsPerMinute: cfg.AI.RequestsPerMinute,
		})
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Failed to initialize AI producer", err)
		}
		producer = gemini
	}

	api := handlers.NewAPI(ws, producer)
	api.Audit = audit

	if serveRulesPath != "" {
		rs, err := rules.Load(serveRulesPath)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid ruleset", err)
		}
		for _, warning := range rs.Warnings() {
			observability.ServerLogger.Warn("ruleset warning", zap.String("warning", warning))
		}
		api.SetRules(rs)
	}

	manager := handlers.InitHealthManager(versionInfo.Version)
	manager.RegisterChecker("signals", signalHealthChecker{})
	manager.RegisterChecker("workspace", workspaceHealthChecker{ws: ws})
	if audit != nil {
		manager.RegisterChecker("audit", auditHealthChecker{store: audit})
	}

	srv := server.New(host, port,
		server.WithVersion(versionInfo.Version),
		server.WithAPI(api),
	)

	err := srv.Start(ctx,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		cfg.Server.IdleTimeout,
		cfg.Server.ShutdownTimeout,
	)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
	}

	if cfg.Workspace.SnapshotPath != "" {
		if err := ws.Save(cfg.Workspace.SnapshotPath); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to save workspace snapshot", err)
		}
		observability.ServerLogger.Info("workspace snapshot saved",
			zap.String("path", cfg.Workspace.SnapshotPath))
	}

	return nil
}
