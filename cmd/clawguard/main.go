package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clawinfra/clawguard/internal/agent"
	"github.com/clawinfra/clawguard/internal/api"
	"github.com/clawinfra/clawguard/internal/approval"
	"github.com/clawinfra/clawguard/internal/audit"
	"github.com/clawinfra/clawguard/internal/config"
	"github.com/clawinfra/clawguard/internal/creds"
	"github.com/clawinfra/clawguard/internal/notify"
	"github.com/clawinfra/clawguard/internal/scheduler"
	"github.com/clawinfra/clawguard/internal/security"
	"github.com/clawinfra/clawguard/internal/skills"
	"github.com/clawinfra/clawguard/internal/store"
	"github.com/clawinfra/clawguard/internal/tools"
	"github.com/clawinfra/clawguard/internal/trash"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
)

// App holds all the runtime components.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      *store.Store
	Agent      *agent.Agent
	Supervisor *skills.Supervisor
	Scheduler  *scheduler.Scheduler
	APIServer  *api.Server
	MQTT       *notify.MQTTPublisher
	Events     *notify.Broadcaster
}

func main() {
	os.Exit(run())
}

func run() int {
	args := os.Args[1:]
	subCmd := ""
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		subCmd = args[0]
		args = args[1:]
	}

	switch subCmd {
	case "", "start":
		// daemon start, handled below
	case "init":
		fs := flag.NewFlagSet("init", flag.ExitOnError)
		configPath := fs.String("config", "clawguard.toml", "Path to config file")
		if err := fs.Parse(args); err != nil {
			return 1
		}
		if err := config.WriteStarter(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Wrote starter config to %s\n", *configPath)
		return 0
	case "token":
		return tokenCommand(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", subCmd)
		fmt.Fprintln(os.Stderr, "Available commands: init, start, token")
		return 1
	}

	fs := flag.NewFlagSet("clawguard", flag.ExitOnError)
	configPath := fs.String("config", "clawguard.toml", "Path to config file")
	showVersion := fs.Bool("version", false, "Show version")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *showVersion {
		fmt.Printf("clawguard v%s (built %s)\n", version, buildTime)
		return 0
	}

	app, err := setup(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
		return 1
	}
	defer app.Store.Close()

	printBanner(app)

	if err := runServices(app); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error("runtime error", "error", err)
		return 1
	}

	app.Logger.Info("clawguard stopped")
	return 0
}

// tokenCommand mints an API bearer token from the configured secret.
func tokenCommand(args []string) int {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "clawguard.toml", "Path to config file")
	subject := fs.String("subject", "ops", "Token subject (reviewer name)")
	expiry := fs.Duration("expiry", 24*time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if cfg.API.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "Error: api.jwt_secret is not set; auth is disabled")
		return 1
	}

	token, err := security.IssueToken(*subject, []byte(cfg.API.JWTSecret), *expiry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(token)
	return 0
}

// setup wires every component together.
func setup(configPath string) (*App, error) {
	app := &App{}

	app.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := loadConfig(configPath, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app.Config = cfg

	app.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	app.Logger.Info("starting clawguard", "version", version, "config", configPath, "data_dir", cfg.DataDir)

	st, err := store.Open(filepath.Join(cfg.DataDir, "clawguard.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	app.Store = st

	sandbox, err := security.NewSandboxedFs(filepath.Join(cfg.DataDir, "workspace"))
	if err != nil {
		return nil, fmt.Errorf("create sandbox: %w", err)
	}
	tr, err := trash.New(filepath.Join(cfg.DataDir, "trash"), app.Logger)
	if err != nil {
		return nil, fmt.Errorf("create trash: %w", err)
	}
	credStore, err := creds.Open(filepath.Join(cfg.DataDir, "creds"), app.Logger)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	auditLog := audit.NewLog(st, app.Logger)

	app.Supervisor = skills.NewSupervisor(skills.Options{
		SkillsDir:      cfg.SkillsDir(),
		DataDir:        cfg.DataDir,
		Grace:          cfg.SkillGrace(),
		CrashThreshold: cfg.Skills.CrashLoopThreshold,
		PlatformEnv:    cfg.Skills.PlatformEnv,
		Creds:          credStore,
		OnCrash: func(name string, crashes int) {
			auditLog.Record(context.Background(), "system", audit.EventSkillCrashed, "", name,
				fmt.Sprintf("%d crashes", crashes))
		},
	}, app.Logger)

	app.Events = notify.NewBroadcaster(app.Logger)
	queue := approval.NewQueue(st, app.Logger)
	confirmer := security.NewConfirmer(cfg.RequireConfirmation, cfg.ConfirmationTTL(), app.Logger)

	registry := tools.NewRegistry(&tools.Context{
		Sandbox:     sandbox,
		Trash:       tr,
		Supervisor:  app.Supervisor,
		ExecTimeout: cfg.ExecTimeout(),
		Logger:      app.Logger,
	})

	app.Agent = agent.New(agent.Deps{
		Config:     cfg,
		Oracle:     newExecOracle(cfg.Oracle, cfg.OracleTimeout()),
		Registry:   registry,
		Limiter:    security.NewRateLimiter(cfg.Security.RateLimitPerMinute, cfg.Security.RateLimitPerHour),
		Caps:       security.NewCapabilityChecker(cfg.Security.BlockedTools, cfg.Security.ToolCapabilities),
		Confirmer:  confirmer,
		Queue:      queue,
		Audit:      auditLog,
		Supervisor: app.Supervisor,
		Prompts:    skills.NewPromptLibrary(cfg.SkillsDir(), app.Logger),
		Events:     app.Events,
		Logger:     app.Logger,
	})

	app.Scheduler = scheduler.New(cfg.Scheduler.Jobs, app.Agent, app.Supervisor, app.Logger)

	app.APIServer = api.NewServer(api.Deps{
		Bind:       cfg.API.Bind,
		JWTSecret:  jwtSecret(cfg),
		Agent:      app.Agent,
		Queue:      queue,
		Confirmer:  confirmer,
		Supervisor: app.Supervisor,
		Scheduler:  app.Scheduler,
		Creds:      credStore,
		Audit:      auditLog,
		Events:     app.Events,
		Logger:     app.Logger,
	})

	if cfg.Notify.MQTTBroker != "" {
		pub, err := notify.NewMQTTPublisher(notify.MQTTOptions{
			Broker:   cfg.Notify.MQTTBroker,
			Topic:    cfg.Notify.MQTTTopic,
			ClientID: cfg.Notify.MQTTClientID,
			Username: cfg.Notify.MQTTUsername,
			Password: cfg.Notify.MQTTPassword,
		}, app.Logger)
		if err != nil {
			app.Logger.Warn("mqtt publisher disabled", "error", err)
		} else {
			app.MQTT = pub
		}
	}

	return app, nil
}

func jwtSecret(cfg *config.Config) []byte {
	if cfg.API.JWTSecret == "" {
		return nil
	}
	return []byte(cfg.API.JWTSecret)
}

// loadConfig loads the config file, falling back to defaults when missing.
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no config found, using defaults", "path", path)
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runServices runs the daemon until a shutdown signal arrives.
func runServices(app *App) error {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go watchSignals(cancel, app.Logger)

	// Reconcile once before serving so skills come up with the daemon.
	if err := app.Supervisor.Reconcile(); err != nil {
		app.Logger.Warn("initial skill reconcile failed", "error", err)
	}
	defer app.Supervisor.StopAll()

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error { return app.APIServer.Start(ctx) })
	g.Go(func() error { return app.Scheduler.Run(ctx) })
	g.Go(func() error { return runTicks(ctx, app.Agent, app.Config.TickInterval()) })
	if app.MQTT != nil {
		g.Go(func() error { return app.MQTT.Run(ctx, app.Events) })
	}

	return g.Wait()
}

// runTicks drives the maintenance tick: expiry sweep, approved-action drain,
// skill reconciliation.
func runTicks(ctx context.Context, ag *agent.Agent, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ag.Tick(ctx)
		}
	}
}

// watchSignals cancels the root context on INT/TERM and logs other signals.
func watchSignals(cancel context.CancelFunc, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, getShutdownSignals()...)

	for sig := range sigCh {
		if handlePlatformSignal(sig, logger) {
			continue
		}
		logger.Info("shutdown signal received", "signal", sig)
		cancel()
		return
	}
}

func printBanner(app *App) {
	fmt.Println()
	fmt.Printf("  clawguard v%s\n", version)
	fmt.Println("  Execution safety for LLM agents: every tool call gated, audited, reversible.")
	fmt.Println()
	fmt.Printf("  API:    http://%s\n", app.Config.API.Bind)
	fmt.Printf("  Data:   %s\n", app.Config.DataDir)
	fmt.Printf("  Skills: %s\n", app.Config.SkillsDir())
	fmt.Println()
}
