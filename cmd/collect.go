package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/domain-intel/internal/collector"
	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/session"
)

var (
	collectCollectors string
	collectFollow     int
	collectFormat     string
	collectPrevious   string
	collectOutput     string
	collectComplete   bool
	collectNoSave     bool
	collectQuiet      bool
)

var collectCmd = &cobra.Command{
	Use:   "collect <domain> [url...]",
	Short: "Run collectors against a domain and merge the results into a session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		enabled := cfg.Collector.Enabled
		if collectCollectors != "" {
			enabled = splitList(collectCollectors)
		}
		rounds := cfg.Session.FollowRounds
		if cmd.Flags().Changed("follow") {
			rounds = collectFollow
		}

		env, err := initEnv(ctx, cfg, enabled, cfg.Session.AutoSave && !collectNoSave)
		if err != nil {
			return err
		}
		defer env.Close(context.Background())

		var bar *barReporter
		reporters := collector.MultiReporter{collector.LogReporter{Log: zap.L()}}
		if !collectQuiet {
			bar = newBarReporter(os.Stderr)
			reporters = append(reporters, bar)
		}

		s, err := session.New(args[0], env.Manager, session.WithMetrics(env.Metrics))
		if err != nil {
			return err
		}
		s.SetPreviouslyDiscovered(splitList(collectPrevious))
		for _, c := range env.Collectors {
			if err := s.RegisterCollector(ctx, c, collector.Context{Reporter: reporters, Logger: zap.L()}); err != nil {
				return err
			}
		}

		urls := args[1:]
		if len(urls) == 0 {
			urls = []string{"https://" + s.Domain() + "/"}
		}
		opts := collector.ExecuteOptions{Extract: cfg.Extract.Options}

		for _, c := range env.Collectors {
			runOnce(ctx, s, c.Info().ID, urls, opts)
		}
		if bar != nil {
			bar.Finish()
		}

		// Follow-up rounds reuse the first collector on the best unexplored links.
		primary := env.Collectors[0].Info().ID
		for round := 1; round <= rounds; round++ {
			targets := followTargets(s.Suggestions(), cfg.Session.MaxURLsPerRun)
			if len(targets) == 0 {
				break
			}
			zap.L().Info("following discovered links",
				zap.Int("round", round),
				zap.Int("targets", len(targets)),
			)
			runOnce(ctx, s, primary, targets, opts)
			if bar != nil {
				bar.Finish()
			}
		}

		if collectComplete {
			if err := s.Complete(); err != nil {
				return err
			}
		}

		snap := s.Export()
		if env.Store != nil {
			if err := env.Store.SaveSession(ctx, snap); err != nil {
				return eris.Wrap(err, "save session")
			}
			zap.L().Info("session saved", zap.String("session_id", snap.ID))
		}

		out := io.Writer(os.Stdout)
		if collectOutput != "" {
			f, err := os.Create(collectOutput)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return writeSnapshot(out, snap, s.Suggestions(), collectFormat)
	},
}

// runOnce executes one collector run. Failures are logged and the session
// moves on to the next collector.
func runOnce(ctx context.Context, s *session.Session, collectorID string, urls []string, opts collector.ExecuteOptions) {
	res, err := s.Run(ctx, collectorID, urls, opts)
	if err != nil {
		level := zap.WarnLevel
		if errors.Is(err, context.Canceled) {
			level = zap.InfoLevel
		}
		zap.L().Check(level, "collector run failed").Write(
			zap.String("collector", collectorID),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("collector run complete",
		zap.String("collector", collectorID),
		zap.Int("succeeded", res.Stats.Succeeded),
		zap.Int("failed", res.Stats.Failed),
		zap.Int("data_points", res.Stats.DataPoints),
	)
}

// followTargets returns the explore_links targets, deduplicated and capped
// at limit when limit is positive.
func followTargets(suggestions []model.Suggestion, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, sg := range suggestions {
		if sg.Action != model.ActionExploreLinks {
			continue
		}
		for _, u := range sg.TargetURLs {
			if seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
			if limit > 0 && len(out) == limit {
				return out
			}
		}
	}
	return out
}

// writeSnapshot renders a session in the requested format.
func writeSnapshot(out io.Writer, snap *model.SessionSnapshot, suggestions []model.Suggestion, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case "", "summary":
		formatSessionSummary(out, snap, suggestions)
		return nil
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}

// formatSessionSummary writes a human-readable session report to out.
func formatSessionSummary(out io.Writer, snap *model.SessionSnapshot, suggestions []model.Suggestion) {
	st := snap.Stats
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Session:\t%s\n", snap.ID)
	_, _ = fmt.Fprintf(w, "Domain:\t%s\n", snap.Domain)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", snap.Status)
	_, _ = fmt.Fprintf(w, "Runs:\t%d (%d ok, %d failed)\n", st.TotalRuns, st.SuccessfulRuns, st.FailedRuns)
	_, _ = fmt.Fprintf(w, "Pages:\t%d of %d attempted\n", st.TotalPages, st.PagesAttempted)
	_, _ = fmt.Fprintf(w, "Data points:\t%d\n", st.TotalDataPoints)
	_, _ = fmt.Fprintf(w, "Unique links:\t%d\n", st.UniqueLinks)
	_, _ = fmt.Fprintf(w, "Avg quality:\t%.1f\n", st.AverageQuality)
	_, _ = fmt.Fprintf(w, "Avg completeness:\t%.1f\n", st.AverageCompleteness)
	_ = w.Flush()

	if len(suggestions) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ACTION\tCONFIDENCE\tTARGETS\tREASON")
	_, _ = fmt.Fprintln(w, "------\t----------\t-------\t------")
	for _, sg := range suggestions {
		action := string(sg.Action)
		if sg.CollectorID != "" {
			action += "(" + sg.CollectorID + ")"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", action, sg.Confidence, len(sg.TargetURLs), sg.Reason)
	}
	_ = w.Flush()
}

func init() {
	collectCmd.Flags().StringVar(&collectCollectors, "collectors", "", "comma separated collector ids (default from config)")
	collectCmd.Flags().IntVar(&collectFollow, "follow", 0, "rounds of following discovered links (default from config)")
	collectCmd.Flags().StringVar(&collectFormat, "format", "summary", "output format: summary, json or yaml")
	collectCmd.Flags().StringVar(&collectPrevious, "previous", "", "comma separated URLs already known from earlier work")
	collectCmd.Flags().StringVarP(&collectOutput, "output", "o", "", "write output to a file instead of stdout")
	collectCmd.Flags().BoolVar(&collectComplete, "complete", false, "mark the session completed after collecting")
	collectCmd.Flags().BoolVar(&collectNoSave, "no-save", false, "do not persist the session")
	collectCmd.Flags().BoolVarP(&collectQuiet, "quiet", "q", false, "hide progress bars")
	rootCmd.AddCommand(collectCmd)
}
