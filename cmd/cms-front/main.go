package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dgellow/cms-front/internal/log"
	"github.com/spf13/cobra"
)

// Version information set at build time
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "cms-front",
		Short: "Dashboard front end for the CMS API",
		Long: `cms-front serves the content management dashboard. It keeps the
session token in a cookie, guards the dashboard pages and talks to the
CMS REST API on the viewer's behalf.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel == "" {
				return nil
			}
			return log.SetLogLevel(logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (error, warn, info, debug, trace); defaults to LOG_LEVEL")

	rootCmd.AddCommand(
		serveCmd(),
		validateCmd(),
		whoamiCmd(),
		hashPasswordCmd(),
		versionCmd(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
