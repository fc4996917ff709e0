package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewExperimentCmd создаёт группу команд для управления экспериментами.
func NewExperimentCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "experiment",
		Aliases: []string{"exp"},
		Short:   "Manage search quality experiments",
	}

	cmd.AddCommand(
		newExperimentListCmd(clientFn, outputFn),
		newExperimentCreateCmd(clientFn, outputFn),
		newExperimentShowCmd(clientFn, outputFn),
		newExperimentDeleteCmd(clientFn, outputFn),
		newExperimentHistoryCmd(clientFn, outputFn),
	)

	return cmd
}

func newExperimentListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListExperimentsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List experiments",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			exps, err := client.ListExperiments(opts)
			if err != nil {
				return err
			}

			headers := []string{"ID", "TYPE", "STATUS", "SCHEDULED", "RESULTS", "CREATED"}
			rows := make([][]string, len(exps))
			for i, e := range exps {
				rows[i] = []string{
					e.ID, e.Type, e.Status, strconv.FormatBool(e.Scheduled),
					strconv.Itoa(e.Results), e.CreatedAt,
				}
			}

			out.Print(headers, rows, exps)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "Filter by type (PAIRWISE_COMPARISON, POINTWISE_EVALUATION, HYBRID_OPTIMIZER)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (PROCESSING, COMPLETED, ERROR)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newExperimentCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateExperimentRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create and start an experiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req.Type = strings.ToUpper(req.Type)
			exp, err := client.CreateExperiment(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Experiment started: %s", exp.ID))
			out.Print(
				[]string{"ID", "TYPE", "STATUS"},
				[][]string{{exp.ID, exp.Type, exp.Status}},
				exp,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Type, "type", "", "Experiment type (required)")
	cmd.Flags().StringVar(&req.QuerySetID, "query-set", "", "Query set ID (required)")
	cmd.Flags().StringSliceVar(&req.SearchConfigurationIDs, "config", nil, "Search configuration ID (repeatable)")
	cmd.Flags().StringSliceVar(&req.JudgmentIDs, "judgment", nil, "Judgment list ID (repeatable)")
	cmd.Flags().IntVar(&req.Size, "size", 0, "Number of documents to fetch per query")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("query-set")

	return cmd
}

func newExperimentShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show experiment results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			exp, err := client.GetExperiment(args[0])
			if err != nil {
				return err
			}

			if exp.Error != "" {
				out.Error(exp.Error)
			}

			headers := []string{"QUERY", "CONFIG", "VARIANT", "METRICS", "ERROR"}
			rows := make([][]string, len(exp.Results))
			for i, r := range exp.Results {
				rows[i] = []string{
					r.QueryText, r.SearchConfigurationID, r.VariantID,
					formatMetrics(r.Metrics), r.Error,
				}
			}

			out.Success(fmt.Sprintf("%s %s: %s", exp.Type, exp.ID, exp.Status))
			out.Print(headers, rows, exp)
			return nil
		},
	}
}

func newExperimentDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an experiment and its schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteExperiment(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Experiment deleted: %s", args[0]))
			return nil
		},
	}
}

func newExperimentHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history ID",
		Short: "Show scheduled run history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			records, err := client.History(args[0], limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "STARTED", "DURATION", "STATUS", "RESULTS", "ERROR"}
			rows := make([][]string, len(records))
			for i, h := range records {
				rows[i] = []string{
					h.ID, h.Timestamp, strconv.FormatInt(h.DurationMs, 10) + "ms",
					h.Status, strconv.Itoa(h.Results), h.Error,
				}
			}

			out.Print(headers, rows, records)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of records")

	return cmd
}

// formatMetrics выводит метрики в стабильном порядке: "jaccard=0.2000 ndcg@10=0.8100".
func formatMetrics(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.4f", k, m[k])
	}
	return strings.Join(parts, " ")
}
