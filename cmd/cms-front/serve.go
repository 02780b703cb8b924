package main

import (
	"fmt"

	"github.com/dgellow/cms-front/internal"
	"github.com/dgellow/cms-front/internal/config"
	"github.com/dgellow/cms-front/internal/log"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard server",
		Long: `Run the dashboard server. Without --config every setting comes from
the environment (CMS_API_BASE_URL, CMS_FRONT_ADDR, ...).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			log.LogInfoWithFields("main", "Starting cms-front", map[string]any{
				"version": version,
				"config":  configPath,
			})

			app, err := internal.NewCMSFront(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("building dashboard: %w", err)
			}
			return app.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a JSON config file")

	return cmd
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		cfg, err := config.FromEnv()
		if err != nil {
			return config.Config{}, fmt.Errorf("loading config from environment: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
