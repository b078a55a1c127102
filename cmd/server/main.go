/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the strike coordination server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, apply environment overrides
  2. Initialize SQLite store
  3. Load nation roster and allocation policy
  4. Wire services, dispatchers, and the background runner
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080)
  -db       SQLite database path (default: strike.db)
            Use ":memory:" for in-memory database
  -roster   Nation roster YAML (optional; empty directory without it)
  -policy   Allocation policy JSON/YAML (optional; built-in defaults)
  -webhook  External alert endpoint URL (optional)

ENVIRONMENT:
  PORT, DB_PATH, ROSTER_PATH, POLICY_PATH, WEBHOOK_URL override the
  corresponding flags when set.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the background runner
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database and roster
  ./server -db="./data/strike.db" -roster="./data/roster.yaml"

  # Run with a raid-tuned policy
  ./server -policy="./configs/raid.yaml"

SEE ALSO:
  - api/server.go: Router configuration
  - api/runner.go: Background job execution
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/warp/strike-engine/api"
	"github.com/warp/strike-engine/counter"
	"github.com/warp/strike-engine/directory"
	"github.com/warp/strike-engine/engine"
	"github.com/warp/strike-engine/factory"
	"github.com/warp/strike-engine/notify"
	"github.com/warp/strike-engine/plan"
	"github.com/warp/strike-engine/store/sqlite"
)

type config struct {
	Port       int    `env:"PORT"`
	DBPath     string `env:"DB_PATH"`
	RosterPath string `env:"ROSTER_PATH"`
	PolicyPath string `env:"POLICY_PATH"`
	WebhookURL string `env:"WEBHOOK_URL"`
}

func main() {
	cfg := config{
		Port:   8080,
		DBPath: "strike.db",
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.RosterPath, "roster", "", "nation roster YAML path")
	flag.StringVar(&cfg.PolicyPath, "policy", "", "allocation policy JSON/YAML path")
	flag.StringVar(&cfg.WebhookURL, "webhook", "", "external alert endpoint URL")
	flag.Parse()

	// Environment wins over flags so containerized deploys need no argv.
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to parse environment: %v", err)
	}

	// Store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Nation directory
	dir := directory.NewStatic()
	if cfg.RosterPath != "" {
		dir, err = directory.LoadRosterFile(cfg.RosterPath)
		if err != nil {
			log.Fatalf("Failed to load roster: %v", err)
		}
		log.Printf("Loaded %d nations from %s", dir.Size(), cfg.RosterPath)
	}

	// Allocation policy
	policy := engine.DefaultPolicy()
	if cfg.PolicyPath != "" {
		policy, err = factory.NewPolicyFactory().LoadFile(cfg.PolicyPath)
		if err != nil {
			log.Fatalf("Failed to load policy: %v", err)
		}
		log.Printf("Loaded allocation policy from %s", cfg.PolicyPath)
	}

	// Dispatchers
	var dispatcher engine.Dispatcher = notify.NewLog()
	if cfg.WebhookURL != "" {
		dispatcher = notify.NewFanout(notify.NewLog(), notify.NewWebhook(cfg.WebhookURL))
	}

	// Services share one suppression cache so plan mutations are visible
	// to counter creation immediately.
	cache := engine.NewSuppressionCache()
	plans := plan.NewService(store, dir, policy, cache, dispatcher, nil)
	counters := counter.NewService(store, dir, policy, cache, dispatcher, nil)

	// Background runner doubles as the task queue for both services.
	runner := api.NewRunner(plans, counters)
	plans.Queue = runner
	counters.Queue = runner
	runner.Start()

	handler := api.NewHandler(store, plans, counters, dir, policy)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	runner.Stop()

	log.Println("Server stopped")
}
