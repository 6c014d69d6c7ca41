package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"honeypot/internal/infra/config"
)

func newEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [token]",
		Short: "Encrypt an account token for the config file",
		Long: `Encrypt an account token with the HONEYPOT_CONFIG_KEY passphrase.
The token is read from the argument or, when omitted, from the first line of stdin.
Paste the printed "enc:..." value into honeypot.tokens.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pass := os.Getenv("HONEYPOT_CONFIG_KEY")
			if pass == "" {
				return errors.New("HONEYPOT_CONFIG_KEY is not set")
			}

			var value string
			if len(args) == 1 {
				value = args[0]
			} else {
				sc := bufio.NewScanner(cmd.InOrStdin())
				if sc.Scan() {
					value = sc.Text()
				}
				if err := sc.Err(); err != nil {
					return fmt.Errorf("read token: %w", err)
				}
			}
			value = strings.TrimSpace(value)
			if value == "" {
				return errors.New("empty token")
			}

			enc, err := config.EncryptValue(value, pass)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "enc:"+enc)
			return nil
		},
	}
}
