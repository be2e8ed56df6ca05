package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/to-ny/medsearch-sub001/internal/application/services"
	"github.com/to-ny/medsearch-sub001/internal/evaluation"
)

func newEvalCmd(root *rootOptions) *cobra.Command {
	var (
		k          int
		thresholds evaluation.Thresholds
		outputJSON bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "eval <golden.json>",
		Short: "Score ranking quality against a golden query set",
		Long: `Run every golden query through the search engine and report Recall@K and
MRR@K overall and per category. Exits non-zero when a threshold is missed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := evaluation.LoadGoldenQueries(args[0])
			if err != nil {
				return err
			}
			if err := evaluation.ValidateGoldenQueries(queries); err != nil {
				return err
			}

			ctx, cancel := contextWithTimeout(cmd, timeout)
			defer cancel()

			index, closeIndex, err := openIndex(ctx, root)
			if err != nil {
				return fmt.Errorf("failed to open index: %w", err)
			}
			defer closeIndex()

			engine := services.NewSearchEngine(index, services.DefaultSearchEngineConfig())
			summary, err := evaluation.NewRunner(engine, k).Run(ctx, queries)
			if err != nil {
				return err
			}

			if outputJSON {
				enc := json.NewEncoder(root.out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(summary); err != nil {
					return err
				}
			} else if err := printSummary(root.out, summary); err != nil {
				return err
			}

			if violations := thresholds.Check(summary); len(violations) > 0 {
				return fmt.Errorf("evaluation below thresholds: %s", strings.Join(violations, "; "))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&k, "k", evaluation.DefaultK, "Ranking depth for the metrics")
	flags.Float64Var(&thresholds.MinRecall, "min-recall", 0, "Fail when average recall is below this value")
	flags.Float64Var(&thresholds.MinMRR, "min-mrr", 0, "Fail when average MRR is below this value")
	flags.IntVar(&thresholds.MaxFailed, "max-failed", 0, "Number of golden queries allowed to error")
	flags.BoolVarP(&outputJSON, "json", "j", false, "Output the summary in JSON format")
	flags.DurationVar(&timeout, "timeout", 5*time.Minute, "Evaluation timeout")

	return cmd
}

func printSummary(out io.Writer, s *evaluation.EvalSummary) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tCATEGORY\tRECALL@%d\tMRR@%d\tRESULTS\n", s.K, s.K)
	for _, r := range s.Results {
		status := fmt.Sprintf("%d", r.ResultCount)
		if r.Err != nil {
			status = "error"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%.3f\t%s\n", r.QueryID, r.Category, r.RecallAtK, r.MRRAtK, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	categories := make([]string, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)

	fmt.Fprintf(out, "\n%d queries, %d with hits, %d failed, avg latency %s\n",
		s.TotalQueries, s.QueriesWithHits, s.FailedQueries, s.AvgLatency)
	fmt.Fprintf(out, "overall  recall@%d %.3f  mrr@%d %.3f\n", s.K, s.AvgRecallAtK, s.K, s.AvgMRRAtK)
	for _, c := range categories {
		cs := s.ByCategory[evaluation.Category(c)]
		fmt.Fprintf(out, "%-8s recall@%d %.3f  mrr@%d %.3f  (%d)\n", c, s.K, cs.AvgRecallAtK, s.K, cs.AvgMRRAtK, cs.Count)
	}
	return nil
}
