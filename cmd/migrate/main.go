package main

import (
	"errors"
	"flag"
	"log"

	"authkit/internal/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

func main() {
	down := flag.Bool("down", false, "roll back all migrations instead of applying them")
	steps := flag.Int("steps", 0, "apply exactly this many migrations (negative rolls back)")
	path := flag.String("path", "migrations", "migrations directory")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.NewConfig()

	m, err := migrate.New("file://"+*path, "pgx5://"+trimScheme(cfg.Database.URL()))
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	defer m.Close()

	switch {
	case *steps != 0:
		err = m.Steps(*steps)
	case *down:
		err = m.Down()
	default:
		err = m.Up()
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations complete")
}

// trimScheme drops the postgres:// prefix so the URL can be re-schemed for
// the pgx/v5 migrate driver.
func trimScheme(url string) string {
	const prefix = "postgres://"
	if len(url) > len(prefix) && url[:len(prefix)] == prefix {
		return url[len(prefix):]
	}
	return url
}
