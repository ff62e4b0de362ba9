package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Best-effort: a .env file is optional in development.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
