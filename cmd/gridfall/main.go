package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gridfall/server/internal/config"
	"github.com/gridfall/server/internal/data"
	"github.com/gridfall/server/internal/engine"
	"github.com/gridfall/server/internal/feed"
	"github.com/gridfall/server/internal/persist"
	"github.com/gridfall/server/internal/scripting"
	"github.com/gridfall/server/internal/store"
	"github.com/gridfall/server/internal/terrain"
	"github.com/gridfall/server/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            Gridfall  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      persistent agent arena server        \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("GRIDFALL_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelBoot()

	// 3. Open the entity store
	printSection("storage")

	var st store.Store
	var db *persist.DB
	switch cfg.Database.Driver {
	case "postgres":
		db, err = persist.NewDB(bootCtx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("postgres connected")

		if err := persist.RunMigrations(bootCtx, db.Pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")
		st = persist.NewStore(db)
	case "memory":
		st = store.NewMemory()
		printOK("in-memory store (state is lost on restart)")
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	fmt.Println()

	// 4. Load data tables and build the world
	printSection("world")

	tables, err := data.LoadResources(cfg.Game.TablesPath)
	if err != nil {
		return fmt.Errorf("load resource tables: %w", err)
	}
	printStat("resource kinds", tables.Count())

	seed := cfg.Game.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	grid, err := terrain.Generate(engine.GridWidth, engine.GridHeight, engine.Haven, rng)
	if err != nil {
		return fmt.Errorf("generate terrain: %w", err)
	}
	printStat("grid width", grid.Width())
	printStat("grid height", grid.Height())

	eng := engine.New(cfg.Game, grid, st, tables, log, rng)

	agentCount, err := st.CountAgents(bootCtx)
	if err != nil {
		return fmt.Errorf("count agents: %w", err)
	}
	printStat("persisted agents", agentCount)

	resourceCount, err := st.CountResources(bootCtx)
	if err != nil {
		return fmt.Errorf("count resources: %w", err)
	}
	printStat("persisted resources", resourceCount)

	// 5. Optional Lua hooks
	if cfg.Game.ScriptsDir != "" {
		luaEngine, err := scripting.NewEngine(cfg.Game.ScriptsDir, log)
		if err != nil {
			return fmt.Errorf("lua engine: %w", err)
		}
		defer luaEngine.Close()
		eng.Subscribe(luaEngine)
		printOK("lua scripts loaded")
	}

	// 6. Spectator feed + HTTP API
	hub := feed.NewHub(log)
	defer hub.Close()
	eng.Subscribe(hub)

	srv := transport.NewServer(eng, log)
	srv.Mux().Handle("GET /v1/feed", hub.Handler())

	httpServer := &http.Server{
		Addr:         cfg.HTTP.BindAddress,
		Handler:      srv,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	httpErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()
	fmt.Println()

	// 7. Game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Game.TickRate)
	defer ticker.Stop()

	printSection("server ready")
	printReady(fmt.Sprintf("listening on %s", cfg.HTTP.BindAddress))
	printReady(fmt.Sprintf("game loop started (tick: %s)", cfg.Game.TickRate))
	fmt.Println()

	ctx := context.Background()
	for {
		select {
		case <-ticker.C:
			eng.Tick(ctx)
		case err := <-httpErr:
			return fmt.Errorf("http server: %w", err)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("http shutdown", zap.Error(err))
			}
			log.Info("server stopped")
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
