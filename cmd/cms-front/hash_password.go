package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/dgellow/cms-front/internal/crypto"
	"github.com/spf13/cobra"
)

func hashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for the metrics password",
		Long: `Print a bcrypt hash suitable for CMS_FRONT_METRICS_PASSWORD_HASH.
The password is read from the first line of stdin when not given as an
argument.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := crypto.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	return cmd
}
