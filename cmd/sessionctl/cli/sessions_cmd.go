package cli

import (
	"errors"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/collabhub/collabhub/internal/sessions"
)

type sessionRow struct {
	ID           string    `json:"id"`
	Device       string    `json:"device"`
	Browser      string    `json:"browser"`
	OS           string    `json:"os"`
	Country      string    `json:"country,omitempty"`
	LastActivity time.Time `json:"last_activity"`
	State        string    `json:"state"`
	Remaining    string    `json:"remaining"`
}

func newSessionsCmd(backend Backend) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and end device sessions",
	}
	cmd.AddCommand(newSessionsListCmd(backend), newSessionsEndCmd(backend), newSessionsSweepCmd(backend))
	return cmd
}

func newSessionsListCmd(backend Backend) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the device sessions of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, cleanup, err := backend.OpenStore(cmd.Context())
			defer cleanup()
			if err != nil {
				return err
			}
			recs, err := store.ListByUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			slices.SortFunc(recs, func(a, b sessions.Record) int {
				return b.LastActivity.Compare(a.LastActivity)
			})
			now := backend.Clock().Now()
			rows := make([]sessionRow, 0, len(recs))
			for _, rec := range recs {
				state, remaining := sessions.Classify(rec.LastActivity, now, backend.Window())
				rows = append(rows, sessionRow{
					ID:           rec.ID,
					Device:       string(rec.Device.Type),
					Browser:      rec.Device.Browser,
					OS:           rec.Device.OS,
					Country:      rec.Location.Country,
					LastActivity: rec.LastActivity.UTC(),
					State:        string(state),
					Remaining:    remaining.Truncate(time.Second).String(),
				})
			}

			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return printJSON(out, rows)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDEVICE\tBROWSER\tOS\tCOUNTRY\tLAST ACTIVITY\tSTATE\tREMAINING")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Device, r.Browser, r.OS, r.Country,
					r.LastActivity.Format(time.RFC3339), r.State, r.Remaining)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id whose sessions are listed")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSessionsEndCmd(backend Backend) *cobra.Command {
	return &cobra.Command{
		Use:   "end SESSION_ID...",
		Short: "End one or more device sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := backend.OpenStore(cmd.Context())
			defer cleanup()
			if err != nil {
				return err
			}
			registry := sessions.NewRegistry(store, sessions.RegistryConfig{Clock: backend.Clock()})
			var errs []error
			for _, id := range args {
				if err := registry.EndSpecificSession(cmd.Context(), id); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ended %s\n", id)
			}
			return errors.Join(errs...)
		},
	}
}

func newSessionsSweepCmd(backend Backend) *cobra.Command {
	var (
		inline bool
		window time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove sessions whose inactivity window elapsed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !inline {
				q, err := backend.OpenJobs()
				if err != nil {
					return err
				}
				defer func() { _ = q.Close() }()
				id, err := q.TriggerSweep(cmd.Context(), window)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued sweep task %s\n", id)
				return nil
			}

			store, cleanup, err := backend.OpenStore(cmd.Context())
			defer cleanup()
			if err != nil {
				return err
			}
			if window <= 0 {
				window = backend.Window()
			}
			removed, err := store.Sweep(cmd.Context(), backend.Clock().Now().Add(-window))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d sessions\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&inline, "inline", false, "Sweep in this process instead of enqueueing a task")
	cmd.Flags().DurationVar(&window, "window", 0, "Inactivity window (defaults to SESSION_INACTIVITY_WINDOW)")
	return cmd
}
