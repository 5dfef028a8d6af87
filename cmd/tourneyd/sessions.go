package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session housekeeping",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete every expired session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.loadConfig()
			if err != nil {
				return err
			}
			defer log.Close() //nolint:errcheck // best effort on exit

			db, err := openDatabase(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // short-lived command

			st, err := openAuthStack(cfg, db, log)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck // short-lived command

			n, err := st.purgeExpired(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			log.Info("expired sessions purged", "count", n)
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired session(s)\n", n)
			return nil
		},
	})
	return cmd
}
