package main

import (
	"os"

	"github.com/joho/godotenv"

	"releasedigest/internal/cli"
)

func main() {
	// Credentials are env-only; a local .env is the supported way to
	// provide them outside CI.
	_ = godotenv.Load()

	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
}
