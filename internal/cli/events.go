package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/majordomo-ai/majordomo/internal/store"
)

var (
	eventsType         string
	eventsAgent        string
	eventsConversation string
	eventsLimit        int

	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "Show the orchestration event log",
		RunE:  runEvents,
	}
)

func init() {
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "Filter by event type (e.g. task.failed)")
	eventsCmd.Flags().StringVar(&eventsAgent, "agent", "", "Filter by agent")
	eventsCmd.Flags().StringVar(&eventsConversation, "conversation", "", "Filter by conversation")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "Maximum rows")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	records, err := rt.EventLog(store.EventFilter{
		Type:           eventsType,
		AgentID:        eventsAgent,
		ConversationID: eventsConversation,
		Limit:          eventsLimit,
	})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No events.")
		return nil
	}
	for _, e := range records {
		c := color.New(color.FgWhite)
		switch e.Level {
		case "warn":
			c = color.New(color.FgYellow)
		case "error":
			c = color.New(color.FgRed)
		}
		line := e.CreatedAt.Format("2006-01-02 15:04:05") + "  " + e.Type
		if e.ConversationID != "" {
			line += "  conv=" + e.ConversationID
		}
		if e.Payload != "" {
			line += "  " + truncate(e.Payload, 80)
		}
		c.Println(line)
	}
	return nil
}
