package main

import (
	"fmt"

	"github.com/dgellow/cms-front/internal/config"
	"github.com/spf13/cobra"
)

func validateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := config.ValidateFile(configPath)
			if err != nil {
				return fmt.Errorf("error during validation: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Validating: %s\n", configPath)

			printIssues := func(title string, issues []config.ValidationError) {
				if len(issues) == 0 {
					return
				}
				fmt.Fprintf(out, "\n%s (%d):\n", title, len(issues))
				for _, issue := range issues {
					if issue.Path != "" {
						fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
					} else {
						fmt.Fprintf(out, "  - %s\n", issue.Message)
					}
				}
			}
			printIssues("Errors", result.Errors)
			printIssues("Warnings", result.Warnings)

			fmt.Fprintln(out)
			switch {
			case len(result.Errors) > 0:
				fmt.Fprintln(out, "Result: FAIL")
			case len(result.Warnings) > 0:
				fmt.Fprintln(out, "Result: PASS (with warnings)")
			default:
				fmt.Fprintln(out, "Result: PASS")
			}

			if len(result.Errors) > 0 {
				return fmt.Errorf("validation failed: %d error(s)", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the config file")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
