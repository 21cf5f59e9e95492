package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/floodroute/internal/adapters/floodfile"
	"github.com/samirrijal/floodroute/internal/adapters/postgres"
	"github.com/samirrijal/floodroute/internal/pkg/config"
)

var (
	upFiles   = []string{"migrations/001_floods.sql"}
	downFiles = []string{"migrations/001_floods.down.sql"}
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|import [floods.json]>")
	}

	cfg, err := config.Load("floodroute-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	switch os.Args[1] {
	case "up":
		runMigrations(ctx, pool, upFiles)
	case "down":
		runMigrations(ctx, pool, downFiles)
	case "import":
		path := cfg.Store.Path
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		importFloods(ctx, &postgres.DB{Pool: pool}, path)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, files []string) {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		if _, err := pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Println("all migrations applied")
}

// importFloods copies the lines of a flood file into the floods table.
// Rows get fresh ids; insertion order is preserved.
func importFloods(ctx context.Context, db *postgres.DB, path string) {
	if _, err := os.Stat(path); err != nil {
		log.Fatalf("flood file: %v", err)
	}
	floods, err := floodfile.New(path, true).List(ctx)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}

	repo := postgres.NewFloodRepo(db)
	for _, fl := range floods {
		stored, err := repo.Add(ctx, fl.Coordinates)
		if err != nil {
			log.Fatalf("insert %s: %v", fl.ID, err)
		}
		fmt.Printf("OK  %s -> %s\n", fl.ID, stored.ID)
	}
	log.Printf("imported %d flood lines from %s", len(floods), path)
}
