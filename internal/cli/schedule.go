package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для управления расписаниями.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled experiment runs",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

var scheduleHeaders = []string{"ID", "CRON", "TIMEZONE", "ENABLED", "NEXT_RUN", "LAST_RUN"}

func scheduleRow(s ScheduleResponse) []string {
	return []string{
		s.ID, s.CronExpr, s.Timezone,
		strconv.FormatBool(s.Enabled), s.NextRunAt, s.LastRunAt,
	}
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var enabled *bool
			if cmd.Flags().Changed("enabled") {
				enabled = &enabledOnly
			}

			jobs, err := client.ListSchedules(enabled)
			if err != nil {
				return err
			}

			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = scheduleRow(j)
			}

			out.Print(scheduleHeaders, rows, jobs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&enabledOnly, "enabled", true, "Filter by enabled flag")

	return cmd
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var cronExpr string
	var timezone string

	cmd := &cobra.Command{
		Use:   "create EXPERIMENT_ID",
		Short: "Schedule recurring runs of an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.Schedule(args[0], ScheduleRequest{
				CronExpr: cronExpr,
				Timezone: timezone,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Experiment scheduled: %s", job.ID))
			out.Print(scheduleHeaders, [][]string{scheduleRow(*job)}, job)
			return nil
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (e.g. '0 * * * *')")
	cmd.Flags().StringVar(&timezone, "timezone", "", "Timezone (e.g. 'Europe/Moscow'), UTC by default")
	cmd.MarkFlagRequired("cron")

	return cmd
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show schedule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetSchedule(args[0])
			if err != nil {
				return err
			}

			out.Print(scheduleHeaders, [][]string{scheduleRow(*job)}, job)
			return nil
		},
	}
}

func newScheduleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"unschedule"},
		Short:   "Remove a schedule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.Unschedule(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule removed: %s", args[0]))
			return nil
		},
	}
}
