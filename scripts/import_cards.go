package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foodchain/foodchain-server-go/internal/config"
	"github.com/foodchain/foodchain-server-go/internal/game/card"
	"github.com/foodchain/foodchain-server-go/internal/storage/postgres"
)

// batchSize bounds the cards written per transaction.
const batchSize = 500

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Get catalog dir from args or use default
	dir := "data/cards"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	absPath, err := filepath.Abs(dir)
	if err != nil {
		log.Fatalf("Failed to get absolute path: %v", err)
	}

	fmt.Println("=== Foodchain Card Import ===")
	fmt.Printf("Catalog dir: %s\n", absPath)

	specs, err := card.ReadSpecDirectory(absPath)
	if err != nil {
		log.Fatalf("Failed to read catalog: %v", err)
	}
	fmt.Printf("Found %d cards\n", len(specs))

	// Reject the import if any reference is broken.
	if _, err := card.NewCatalogFromSpecs(specs); err != nil {
		log.Fatalf("Catalog is invalid: %v", err)
	}
	fmt.Println("✓ Catalog validated")

	// DATABASE_URL wins over the FOODCHAIN_DATABASE_* settings.
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		cfg, err := config.Load(os.Getenv("FOODCHAIN_CONFIG"))
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		dbURL = cfg.Database.DSN()
	}

	fmt.Printf("Connecting to database...\n")
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	fmt.Println("✓ Database connection established")

	store := postgres.NewCardStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to prepare schema: %v", err)
	}

	fmt.Println("Importing cards...")
	startTime := time.Now()
	imported := 0
	for i := 0; i < len(specs); i += batchSize {
		end := min(i+batchSize, len(specs))
		n, err := store.Upsert(ctx, specs[i:end])
		if err != nil {
			log.Fatalf("Failed to import cards %d-%d: %v", i, end, err)
		}
		imported += n
		fmt.Printf("Progress: %d/%d cards imported\n", imported, len(specs))
	}

	total, err := store.Count(ctx)
	if err != nil {
		log.Fatalf("Failed to count cards: %v", err)
	}

	fmt.Println()
	fmt.Println("=== Import Complete ===")
	fmt.Printf("Imported: %d cards\n", imported)
	fmt.Printf("Total in database: %d cards\n", total)
	fmt.Printf("Duration: %s\n", time.Since(startTime).Round(time.Millisecond))
}
