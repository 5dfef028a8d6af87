package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/tourney-core/internal/audit"
	"github.com/nerrad567/tourney-core/internal/auth"
	"github.com/nerrad567/tourney-core/internal/events"
)

func newUsersCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Account administration",
	}

	var roleName string
	invite := &cobra.Command{
		Use:   "invite EMAIL...",
		Short: "Pre-create inactive accounts that complete through register",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := auth.ParseRole(roleName)
			if err != nil {
				return fmt.Errorf("--role: %w", err)
			}

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

			sink := events.NewAuditSink(audit.NewSQLiteRepository(db.DB), log.Logger)
			workers := newWorkerGroup()
			workers.Go(sink.Run)
			service := st.service(events.NewFanout(sink), "cli", log)

			// No caller session: the invitation is attributed to the operator.
			result, err := service.Invite(cmd.Context(), auth.AuthContext{}, args, role)
			workers.Stop()

			out := cmd.OutOrStdout()
			if err != nil {
				if result != nil && len(result.Invited) > 0 {
					fmt.Fprintf(out, "invited before the failure: %s\n", strings.Join(result.Invited, ", "))
				}
				return err
			}

			if len(result.Invited) > 0 {
				fmt.Fprintf(out, "invited as %s: %s\n", role, strings.Join(result.Invited, ", "))
			}
			if len(result.Skipped) > 0 {
				fmt.Fprintf(out, "already registered: %s\n", strings.Join(result.Skipped, ", "))
			}
			return nil
		},
	}
	invite.Flags().StringVar(&roleName, "role", auth.RoleAdministrator.String(), "role of the invited accounts (PARTICIPANT or ADMINISTRATOR)")

	cmd.AddCommand(invite)
	return cmd
}
