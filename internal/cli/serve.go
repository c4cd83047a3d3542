package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/majordomo-ai/majordomo/internal/events"
)

var (
	serveQuiet bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the background dispatcher and scheduler",
		Long: "Run the dispatcher loop: due schedules fire, failed tasks retry,\n" +
			"and completed background results are delivered. Blocks until\n" +
			"interrupted.",
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().BoolVarP(&serveQuiet, "quiet", "q", false, "Suppress live event output")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if !serveQuiet {
		rt.Events().SubscribeAll(printEvent)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printHeader("majordomo dispatcher")
	rt.StartDispatcher(ctx)
	<-ctx.Done()
	fmt.Println("\nshutting down, draining in-flight tasks...")
	return nil
}

func printEvent(e events.Event) {
	ts := e.Timestamp.Format("15:04:05")
	c := color.New(color.FgWhite)
	switch e.Level {
	case "warn":
		c = color.New(color.FgYellow)
	case "error":
		c = color.New(color.FgRed)
	}
	c.Printf("%s  %-18s %s\n", ts, e.Type, eventSummary(e))
}

func eventSummary(e events.Event) string {
	out := ""
	if e.ConversationID != "" {
		out += "conv=" + e.ConversationID + " "
	}
	if e.AgentID != "" {
		out += "agent=" + e.AgentID + " "
	}
	if task, ok := e.Payload["task"].(string); ok {
		out += "task=" + task + " "
	}
	if errText, ok := e.Payload["error"].(string); ok {
		out += "error=" + errText
	}
	return out
}
