package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewQuerySetCmd создаёт группу команд для наборов запросов.
func NewQuerySetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query-set",
		Short: "Manage query sets",
	}

	cmd.AddCommand(
		newQuerySetCreateCmd(clientFn, outputFn),
		newQuerySetShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newQuerySetCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateQuerySetRequest
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a query set",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if file != "" {
				queries, err := readQueries(file)
				if err != nil {
					return err
				}
				req.Queries = append(req.Queries, queries...)
			}

			qs, err := client.CreateQuerySet(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Query set created: %s", qs.ID))
			out.Print(
				[]string{"ID", "NAME", "QUERIES"},
				[][]string{{qs.ID, qs.Name, strconv.Itoa(len(qs.Queries))}},
				qs,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Query set name (required)")
	cmd.Flags().StringVar(&req.Description, "description", "", "Description")
	cmd.Flags().StringArrayVar(&req.Queries, "query", nil, "Query text (repeatable)")
	cmd.Flags().StringVar(&file, "file", "", "File with one query per line")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newQuerySetShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show query set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			qs, err := client.GetQuerySet(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(qs.Queries))
			for i, q := range qs.Queries {
				rows[i] = []string{strconv.Itoa(i + 1), q.QueryText}
			}

			out.Print([]string{"#", "QUERY"}, rows, qs)
			return nil
		},
	}
}

// readQueries читает запросы из файла, по одному на строку. Пустые строки пропускаются.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open queries file: %w", err)
	}
	defer f.Close()

	var queries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			queries = append(queries, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read queries file: %w", err)
	}
	return queries, nil
}
