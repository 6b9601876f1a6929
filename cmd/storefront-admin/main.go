package main

import (
	"fmt"
	"os"

	"storefront/common/logger"
	"storefront/internal/config"
)

var Version = "dev"

func main() {
	cfg := config.Load()
	log := logger.Must(cfg.Log.Level, cfg.Log.Format, "storefront-admin")
	defer log.Sync()

	rootCmd := newRootCmd(postgresBackend(cfg, log), os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
