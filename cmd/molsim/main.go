package main

import (
	"github.com/joho/godotenv"

	"molsim/internal/cli"
)

func main() {
	// Best effort; API keys and store settings may come from a .env file.
	godotenv.Load()

	cli.Execute()
}
