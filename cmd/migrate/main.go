// migrate applies the embedded SQL migrations to DATABASE_URL and prints the resulting version.
package main

import (
	"flag"
	"fmt"
	"os"

	"swadharma/backend/internal/config"
	"swadharma/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", migrate.Up, "up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("config", err)
	}
	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		fail("migrate "+*direction, err)
	}
	version, dirty, ok, err := migrate.Version(cfg.DatabaseURL)
	switch {
	case err != nil:
		fail("version", err)
	case !ok:
		fmt.Println("schema is empty")
	default:
		fmt.Printf("schema at version %d (dirty=%v)\n", version, dirty)
	}
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
