package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/BerkeliumLabs/berkelium/internal/agent"
	"github.com/BerkeliumLabs/berkelium/internal/commands"
	"github.com/BerkeliumLabs/berkelium/internal/config"
	ctxmgr "github.com/BerkeliumLabs/berkelium/internal/context"
	"github.com/BerkeliumLabs/berkelium/internal/llm"
	"github.com/BerkeliumLabs/berkelium/internal/logging"
	"github.com/BerkeliumLabs/berkelium/internal/memory"
	"github.com/BerkeliumLabs/berkelium/internal/permissions"
	"github.com/BerkeliumLabs/berkelium/internal/tools"
	"github.com/BerkeliumLabs/berkelium/internal/ui"
)

type appOptions struct {
	// headless sends prompts and progress to stderr so stdout carries only the answer.
	headless bool
}

// app holds the wired components for one process.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	output     *ui.OutputHandler
	input      *ui.InputHandler
	model      llm.Model
	store      memory.Store
	gate       *permissions.Gate
	instr      *ctxmgr.Manager
	watcher    *ctxmgr.Watcher
	router     *agent.Router
	compressor *agent.Compressor
	handler    *agent.CommandHandler

	stopApprover context.CancelFunc
	approverDone chan struct{}
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.Init(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	logger.Info("berkelium starting",
		zap.String("version", Version),
		zap.String("provider", string(cfg.Provider)),
		logging.Model(cfg.Model),
		zap.String("config", cfg.ConfigPath()),
		zap.String("permission_mode", cfg.Permissions.Mode),
	)

	a := &app{cfg: cfg, logger: logger}
	if opts.headless {
		a.output = ui.NewOutputHandlerTo(os.Stderr, os.Stderr, ui.IsTerminal(os.Stderr))
		a.input = ui.NewInputHandlerFrom(os.Stdin, os.Stderr)
	} else {
		a.output = ui.NewOutputHandler()
		a.input = ui.NewInputHandler()
	}

	a.model, err = newModel(ctx, cfg, ui.NewSpinner(a.output))
	if err != nil {
		return nil, err
	}
	a.store, err = openStore(cfg)
	if err != nil {
		return nil, err
	}

	a.instr = ctxmgr.NewManager(cfg.InstructionsFile, logging.Named("context"))
	a.startWatcher(ctx)

	ws, err := tools.NewWorkspace("")
	if err != nil {
		a.Close()
		return nil, err
	}
	registry := tools.NewDefaultRegistry(ws)
	compressTool := &tools.CompressMemoryTool{}
	registry.Register(compressTool)

	a.gate, err = newGate(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	core := agent.New(agent.Config{
		Model:     a.model,
		Store:     a.store,
		Tools:     registry.Definitions(),
		Estimator: ctxmgr.NewEstimator(ctxmgr.DefaultBudget()),
		Logger:    logging.Named("agent"),
	})
	a.compressor = agent.NewCompressor(core, a.instr, cfg.Memory.CompressTimeout, logging.Named("compressor"))
	compressTool.Compressor = a.compressor

	executor := agent.NewToolExecutor(registry, a.gate, logging.Named("executor"))
	executor.SetParallelReads(cfg.Agent.ParallelReadTools)

	a.router = agent.NewRouter(agent.RouterConfig{
		Agent:    core,
		Executor: executor,
		Commands: loadCatalog(cfg, logging.Named("commands")),
		Context:  a.instr,
		MaxTurns: cfg.Agent.MaxTurns,
		Logger:   logging.Named("router"),
	})

	var pick agent.PickFunc
	if !opts.headless && a.output.IsTTY() && ui.IsTerminal(os.Stdin) {
		pick = pickCommand
	}
	a.handler = agent.NewCommandHandler(a.router, a.compressor, pick)

	a.startApprover(ctx, !opts.headless && ui.IsTerminal(os.Stdin) && a.output.IsTTY())
	return a, nil
}

// newModel builds the provider adapter behind retry and rate limiting.
func newModel(ctx context.Context, cfg *config.Config, spinner *ui.Spinner) (llm.Model, error) {
	var base llm.Model
	switch cfg.Provider {
	case config.ProviderAnthropic:
		base = llm.NewAnthropicModel(cfg.APIKey, cfg.Model, cfg.MaxTokens)
	default:
		gm, err := llm.NewGeminiModel(ctx, cfg.APIKey, cfg.Model, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		base = gm
	}

	resilient := llm.NewResilientModel(base, cfg.RateLimit)
	resilient.SetWaitCallback(spinner.Wait)
	if !cfg.RateLimit.EnableRateLimiting {
		return resilient, nil
	}

	limited := llm.NewRateLimitedModel(resilient, cfg.RateLimit.TokensPerMinute)
	limited.SetWaitCallback(spinner.Wait)
	return limited, nil
}

func openStore(cfg *config.Config) (memory.Store, error) {
	if cfg.Memory.Backend == config.BackendSQLite {
		return memory.NewSQLiteStore(cfg.Memory.Path)
	}
	return memory.NewInMemoryStore(), nil
}

func newGate(cfg *config.Config) (*permissions.Gate, error) {
	mode, err := permissions.ParseMode(cfg.Permissions.Mode)
	if err != nil {
		return nil, err
	}
	scope, err := permissions.ParseScope(cfg.Permissions.GrantScope)
	if err != nil {
		return nil, err
	}
	return permissions.NewGate(permissions.Options{
		Mode:    mode,
		Scope:   scope,
		Timeout: cfg.Permissions.Timeout,
		Logger:  logging.Named("permissions"),
	}), nil
}

// loadCatalog merges the built-ins with markdown commands from the
// configured directories and the user's config dir.
func loadCatalog(cfg *config.Config, logger *zap.Logger) *commands.Catalog {
	dirs := append([]string{commands.UserCommandsDir()}, cfg.Commands.Dirs...)
	return commands.NewLoader(logger, dirs...).Catalog()
}

func (a *app) startWatcher(ctx context.Context) {
	if a.instr.InstructionsPath() == "" {
		return
	}
	w, err := ctxmgr.NewWatcher(a.instr, func() {
		a.logger.Debug("project instructions changed", zap.String("path", a.instr.InstructionsPath()))
	})
	if err != nil {
		a.logger.Warn("instructions watcher unavailable", logging.Error(err))
		return
	}
	if err := w.Start(ctx); err != nil {
		a.logger.Warn("instructions watcher unavailable", logging.Error(err))
		w.Stop()
		return
	}
	a.watcher = w
}

// Close stops background work and logs the session summary.
func (a *app) Close() {
	// an approver blocked on a line read exits with the process
	if a.stopApprover != nil {
		a.stopApprover()
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close memory store", logging.Error(err))
		}
	}
	logging.GlobalMetrics().Summary().Log(a.logger)
}
