/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Reward Rule Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire repository, usage tracker, card catalog, and calculator
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080)
  -db          SQLite database path (default: rewards.db)
               Use ":memory:" for an in-memory database
  -policy-ttl  Policy cache TTL (default: 5m)
  -usage-ttl   Usage aggregate cache TTL (default: 30s)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/rewards.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

ENVIRONMENT:
  No environment variables currently. All config via flags.
  Future: DATABASE_URL, PORT, LOG_LEVEL

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
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

	"github.com/cardfolio/reward-engine/api"
	"github.com/cardfolio/reward-engine/catalog"
	"github.com/cardfolio/reward-engine/engine"
	"github.com/cardfolio/reward-engine/repository"
	"github.com/cardfolio/reward-engine/store/sqlite"
	"github.com/cardfolio/reward-engine/usage"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "rewards.db", "SQLite database path")
	policyTTL := flag.Duration("policy-ttl", repository.DefaultTTL, "policy cache TTL")
	usageTTL := flag.Duration("usage-ttl", usage.DefaultTTL, "usage aggregate cache TTL")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire the evaluation stack
	repo := repository.NewWithTTL(store, *policyTTL)
	tracker := usage.NewTrackerWithTTL(store, *usageTTL)
	cards := catalog.NewRegistry()
	calc := engine.NewCalculator(engine.New(), repo, tracker, cards)

	// Create router
	handler := api.NewHandler(calc, repo, tracker, store, cards)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
