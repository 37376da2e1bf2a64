package main

import (
	"github.com/joho/godotenv"

	"github.com/scry-dev/scry/internal/cli"
)

func main() {
	// A .env file is optional; environment variables win either way.
	_ = godotenv.Load()

	cli.Execute()
}
