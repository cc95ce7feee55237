package main

import (
	"os"

	"github.com/veritas-labs/veritas-rag/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
