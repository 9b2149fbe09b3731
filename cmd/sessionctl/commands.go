package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropcart/session-record-service/internal/core/domain"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent sessions",
		Long:  `List sessions from the recent-sessions index, newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 || offset < 0 {
				return fmt.Errorf("--limit and --offset must not be negative")
			}
			return withSource(cmd, opts, func(src sessionSource) error {
				list, err := src.List(cmd.Context(), limit, offset)
				if err != nil {
					return fmt.Errorf("list sessions: %w", err)
				}
				if opts.output != outputTable {
					return writeStructured(cmd.OutOrStdout(), opts.output, list)
				}
				writeSessionTable(cmd.OutOrStdout(), list, offset)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of sessions to skip")
	return cmd
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show metadata for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSource(cmd, opts, func(src sessionSource) error {
				m, err := src.Session(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if opts.output != outputTable {
					return writeStructured(cmd.OutOrStdout(), opts.output, m)
				}
				writeSessionDetail(cmd.OutOrStdout(), m)
				return nil
			})
		},
	}
}

// eventsView is the structured output of the events command.
type eventsView struct {
	SessionID string                `json:"sessionId"`
	Events    []domain.SessionEvent `json:"events"`
}

func newEventsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events <session-id>",
		Short: "Print the event log for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSource(cmd, opts, func(src sessionSource) error {
				events, err := src.Events(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if opts.output != outputTable {
					return writeStructured(cmd.OutOrStdout(), opts.output, eventsView{SessionID: args[0], Events: events})
				}
				writeEventTable(cmd.OutOrStdout(), args[0], events)
				return nil
			})
		},
	}
}
