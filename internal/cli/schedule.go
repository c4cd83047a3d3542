package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/majordomo-ai/majordomo/internal/store"
)

var (
	scheduleName   string
	scheduleAgent  string
	scheduleStatus string

	scheduleCmd = &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	scheduleAddCmd = &cobra.Command{
		Use:   "add <expression> <input>",
		Short: "Add a schedule (cron expression, @every interval, or RFC3339 time)",
		Long: "Add a scheduled task. The expression is a cron line (\"0 7 * * *\"),\n" +
			"an @every interval (\"@every 1h\"), or an absolute RFC3339 timestamp\n" +
			"for a one-shot run.",
		Args: cobra.ExactArgs(2),
		RunE: runScheduleAdd,
	}

	scheduleListCmd = &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE:  runScheduleList,
	}

	schedulePauseCmd = &cobra.Command{
		Use:   "pause <id>",
		Short: "Pause a schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  setScheduleStatus(store.ScheduleStatusPaused),
	}

	scheduleResumeCmd = &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a paused schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  setScheduleStatus(store.ScheduleStatusActive),
	}
)

func init() {
	scheduleAddCmd.Flags().StringVar(&scheduleName, "name", "", "Schedule name")
	scheduleAddCmd.Flags().StringVar(&scheduleAgent, "agent", "", "Agent to run")
	scheduleListCmd.Flags().StringVar(&scheduleStatus, "status", "", "Filter by status (active, paused, completed)")
	scheduleCmd.AddCommand(scheduleAddCmd, scheduleListCmd, schedulePauseCmd, scheduleResumeCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runScheduleAdd(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	expr, input := args[0], args[1]
	name := scheduleName
	if name == "" {
		name = truncate(input, 40)
	}
	st, err := rt.Dispatcher().CreateSchedule(name, expr, scheduleAgent, input)
	if err != nil {
		return err
	}
	fmt.Printf("schedule %s (%s), next run %s\n", st.ID, st.Kind, st.NextRunAt.Format(time.RFC3339))
	return nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	schedules, err := rt.Store().ListScheduledTasks(scheduleStatus)
	if err != nil {
		return err
	}
	if len(schedules) == 0 {
		fmt.Println("No schedules.")
		return nil
	}
	for _, st := range schedules {
		next := "-"
		if st.NextRunAt != nil {
			next = st.NextRunAt.Format("2006-01-02 15:04")
		}
		statusColor := color.New(color.FgGreen)
		if st.Status != store.ScheduleStatusActive {
			statusColor = color.New(color.Faint)
		}
		fmt.Printf("%s  %s  %-24s  %-16s  next=%s\n",
			st.ID, statusColor.Sprint(st.Status), st.Name, st.Schedule, next)
	}
	return nil
}

func setScheduleStatus(status string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		if _, err := rt.Store().GetScheduledTask(args[0]); err != nil {
			return err
		}
		if err := rt.Store().SetScheduledStatus(args[0], status); err != nil {
			return err
		}
		fmt.Printf("schedule %s is now %s\n", args[0], status)
		return nil
	}
}
