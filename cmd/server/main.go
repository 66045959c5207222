package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/foodchain/foodchain-server-go/internal/config"
	"github.com/foodchain/foodchain-server-go/internal/game"
	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/game/effects"
	"github.com/foodchain/foodchain-server-go/internal/observability"
	"github.com/foodchain/foodchain-server-go/internal/scripting"
	"github.com/foodchain/foodchain-server-go/internal/server"
	"github.com/foodchain/foodchain-server-go/internal/storage/postgres"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

// defaultDeckSize is the size of the deck handed to players who bring none.
const defaultDeckSize = 20

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := observability.NewLogger(cfg.Logging, version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting foodchain server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *postgres.Pool
	if cfg.Catalog.Source == "postgres" {
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()
	}

	cat, err := loadCatalog(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatal("failed to load card catalog", zap.Error(err))
	}
	logger.Info("card catalog loaded",
		zap.String("source", cfg.Catalog.Source),
		zap.Int("cards", cat.Len()),
	)

	var scripts effects.ScriptRunner
	if cfg.Scripting.Dir != "" {
		mgr := scripting.NewManager(logger, cfg.Scripting.InstructionLimit)
		defer mgr.Close()
		if err := mgr.LoadDir(cfg.Scripting.Dir); err != nil {
			logger.Fatal("failed to load card scripts", zap.Error(err))
		}
		scripts = mgr
		logger.Info("card scripts loaded", zap.String("dir", cfg.Scripting.Dir))
	}

	engine := game.NewEngine(logger, cat, scripts, game.Options{
		Rules:     cfg.Engine.Rules(),
		Seed:      cfg.Engine.Seed,
		ReplayDir: cfg.Engine.ReplayDir,
	})
	logger.Info("game engine initialized",
		zap.Int("field_slots", cfg.Engine.FieldSlots),
		zap.Int("starting_hp", cfg.Engine.StartingHP),
	)

	hub := server.NewHub(logger, engine, cfg.Server, defaultDeck(cat))
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.Health(r.Context(), 2*time.Second); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start WebSocket server
	go func() {
		logger.Info("starting WebSocket server", zap.String("address", cfg.Server.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("WebSocket server error", zap.Error(serveErr))
			stop()
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	logger.Info("received shutdown signal")

	// Graceful shutdown
	logger.Info("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	logger.Info("foodchain server stopped")
}

// loadCatalog reads card definitions from pool, or from the YAML directory
// when pool is nil.
func loadCatalog(ctx context.Context, cfg config.Config, pool *postgres.Pool, logger *zap.Logger) (*card.Catalog, error) {
	if pool == nil {
		return card.LoadDirectory(cfg.Catalog.Dir)
	}

	store := postgres.NewCardStore(pool.DB())
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	n, err := store.Count(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("reading cards from database",
		zap.String("host", cfg.Database.Host),
		zap.Int64("rows", n),
	)
	return store.LoadCatalog(ctx)
}

// defaultDeck cycles through the catalog's playable cards in id order.
func defaultDeck(cat *card.Catalog) []string {
	var ids []string
	for _, def := range cat.All() {
		if !def.Token {
			ids = append(ids, def.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids)
	deck := make([]string, 0, defaultDeckSize)
	for i := 0; len(deck) < defaultDeckSize; i++ {
		deck = append(deck, ids[i%len(ids)])
	}
	return deck
}
