package main

import (
	"os"

	"pumpfun-indexer-sol/internal/pkg/logger"
)

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
