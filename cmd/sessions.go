package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/domain-intel/internal/lifecycle"
	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/session"
	"github.com/sells-group/domain-intel/internal/store"
)

var (
	sessionsDomain string
	sessionsStatus string
	sessionsLimit  int
	exportFormat   string
	exportOutput   string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored collection sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListSessions(ctx, store.SessionFilter{
			Domain: sessionsDomain,
			Status: model.SessionStatus(sessionsStatus),
			Limit:  sessionsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list sessions")
		}
		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}
		formatSessionsList(os.Stdout, list)
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show stats and suggested next steps for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := st.GetSession(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "get session %s", args[0])
		}
		// Restoring recomputes suggestions from the stored history.
		s, err := session.Restore(snap, lifecycle.NewManager(cfg.Lifecycle))
		if err != nil {
			return err
		}
		formatSessionSummary(os.Stdout, snap, s.Suggestions())
		return nil
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a stored session as JSON or YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := st.GetSession(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "get session %s", args[0])
		}

		out := io.Writer(os.Stdout)
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return writeSnapshot(out, snap, nil, exportFormat)
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteSession(ctx, args[0]); err != nil {
			return eris.Wrapf(err, "delete session %s", args[0])
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

// formatSessionsList writes a table of session summaries to out.
func formatSessionsList(out io.Writer, list []store.SessionSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDOMAIN\tSTATUS\tPAGES\tRUNS\tUPDATED")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-----\t----\t-------")

	for _, s := range list {
		domain := s.Domain
		if len(domain) > 30 {
			domain = domain[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			truncateID(s.ID),
			domain,
			s.Status,
			s.Pages,
			s.Runs,
			s.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID shortens a UUID to its first 8 characters for display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	sessionsListCmd.Flags().StringVar(&sessionsDomain, "domain", "", "filter by domain")
	sessionsListCmd.Flags().StringVar(&sessionsStatus, "status", "", "filter by status (active, paused, completed)")
	sessionsListCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "max sessions to show")

	sessionsExportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or yaml")
	sessionsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write output to a file instead of stdout")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsExportCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
