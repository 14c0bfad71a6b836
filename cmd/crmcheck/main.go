// Command crmcheck exercises the GoHighLevel credentials from the shell,
// using the same client the signup service runs with.
package main

import (
	"os"

	"github.com/baechuer/meeting-machine/internal/config"
	"github.com/baechuer/meeting-machine/internal/infrastructure/crm"
	"github.com/baechuer/meeting-machine/internal/logger"
)

func defaultClient(baseURL string) (diagnostics, error) {
	cfg, err := config.LoadCRM()
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return crm.NewClient(cfg, nil), nil
}

func main() {
	logger.Init()

	root := newRootCmd(defaultClient, os.Stdout)
	if err := root.Execute(); err != nil {
		logger.Logger.Error().Err(err).Msg("crmcheck failed")
		os.Exit(1)
	}
}
