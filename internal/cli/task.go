package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/majordomo-ai/majordomo/internal/tools"
)

var (
	taskStatus string
	taskLimit  int
	spawnAgent string

	taskCmd = &cobra.Command{
		Use:   "task",
		Short: "Inspect and spawn background tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	taskListCmd = &cobra.Command{
		Use:   "list",
		Short: "List background tasks",
		RunE:  runTaskList,
	}

	taskSpawnCmd = &cobra.Command{
		Use:   "spawn <input>",
		Short: "Spawn a background task",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTaskSpawn,
	}

	taskShowCmd = &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE:  runTaskShow,
	}
)

func init() {
	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status (pending, running, completed, failed)")
	taskListCmd.Flags().IntVar(&taskLimit, "limit", 20, "Maximum rows")
	taskSpawnCmd.Flags().StringVar(&spawnAgent, "agent", "", "Agent to run the task")
	taskCmd.AddCommand(taskListCmd, taskSpawnCmd, taskShowCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	tasks, err := rt.Store().ListTasks(taskStatus, taskLimit, 0)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return nil
	}
	for _, t := range tasks {
		statusColor := color.New(color.FgWhite)
		switch t.Status {
		case "completed":
			statusColor = color.New(color.FgGreen)
		case "failed":
			statusColor = color.New(color.FgRed)
		case "running":
			statusColor = color.New(color.FgYellow)
		}
		fmt.Printf("%s  %s  %s  attempts=%d  %s\n",
			t.ID, statusColor.Sprint(t.Status), t.Type, t.Attempts, truncate(t.Input, 50))
	}
	return nil
}

func runTaskSpawn(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	input := strings.Join(args, " ")
	id, err := rt.SpawnAgent(context.Background(), spawnAgent, input, tools.Origin{})
	if err != nil {
		return err
	}
	fmt.Printf("spawned task %s\n", id)
	rt.Dispatcher().Wait()

	task, err := rt.Store().GetTask(id)
	if err != nil || task == nil {
		return err
	}
	fmt.Printf("status: %s\n", task.Status)
	if task.Result != "" {
		fmt.Println(task.Result)
	}
	if task.ErrorText != "" {
		color.New(color.FgRed).Println(task.ErrorText)
	}
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	task, err := rt.Store().GetTask(args[0])
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s not found", args[0])
	}
	fmt.Printf("id:       %s\n", task.ID)
	fmt.Printf("type:     %s\n", task.Type)
	fmt.Printf("status:   %s\n", task.Status)
	fmt.Printf("agent:    %s\n", task.AgentID)
	fmt.Printf("attempts: %d\n", task.Attempts)
	fmt.Printf("input:    %s\n", task.Input)
	if task.RunConversationID != "" {
		fmt.Printf("conversation: %s\n", task.RunConversationID)
	}
	if task.Result != "" {
		fmt.Printf("result:\n%s\n", task.Result)
	}
	if task.ErrorText != "" {
		fmt.Printf("error:    %s\n", task.ErrorText)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
