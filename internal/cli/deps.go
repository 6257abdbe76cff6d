package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgeworks/pipeline/internal/artifact"
	"github.com/forgeworks/pipeline/internal/clock"
	"github.com/forgeworks/pipeline/internal/config"
	"github.com/forgeworks/pipeline/internal/graph"
	"github.com/forgeworks/pipeline/internal/history"
	"github.com/forgeworks/pipeline/internal/session"
	pipelinesync "github.com/forgeworks/pipeline/internal/sync"
	"github.com/forgeworks/pipeline/internal/todo"
	"github.com/forgeworks/pipeline/internal/xref"
)

// app holds the wired dependencies for one command invocation. Commands
// construct it in RunE so configuration and flags are fully resolved.
type app struct {
	cfg      *config.Config
	store    *artifact.FileStore
	graph    *graph.Graph
	service  *artifact.Service
	checker  *xref.Checker
	engine   *pipelinesync.Engine
	resolver *pipelinesync.Resolver
	sessions *session.Manager
	todos    *todo.Manager
	history  *history.Appender
}

// newApp loads configuration and wires the full dependency graph.
func newApp(ctx context.Context, flags *GlobalFlags) (*app, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	stateDir := flags.StateDir
	if stateDir == "" {
		stateDir = cfg.Storage.Dir
	}

	store, err := artifact.NewFileStore(stateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}
	sessionStore, err := session.NewFileStore(stateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	todos, err := todo.NewManager(stateDir, clock.RealClock{})
	if err != nil {
		return nil, fmt.Errorf("failed to open todo manager: %w", err)
	}
	appender, err := history.NewAppender(stateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open history appender: %w", err)
	}

	logger := GetLogger()
	g := graph.Canonical()
	clk := clock.RealClock{}

	return &app{
		cfg:      cfg,
		store:    store,
		graph:    g,
		service:  artifact.NewService(store, artifact.NewValidator(), clk, logger),
		checker:  xref.NewChecker(g, store),
		engine:   pipelinesync.NewEngine(g, store, clk, logger),
		resolver: pipelinesync.NewResolver(store, clk),
		sessions: session.NewManager(sessionStore, clk, logger, cfg.Session.CrashThreshold, cfg.Session.MaxAttempts),
		todos:    todos,
		history:  appender,
	}, nil
}

// validationMode resolves the mode flag, falling back to configuration.
func (a *app) validationMode(flag string) artifact.Mode {
	if flag != "" {
		return artifact.Mode(flag)
	}
	return artifact.Mode(a.cfg.Validation.Mode)
}

// printJSON renders a value as indented JSON on the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
