package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/majordomo-ai/majordomo/internal/store"
)

var (
	agentPrompt string
	agentTools  []string
	agentModel  string
	agentTier   string

	agentCmd = &cobra.Command{
		Use:   "agent",
		Short: "Manage agent definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	agentCreateCmd = &cobra.Command{
		Use:   "create <name>",
		Short: "Create an agent definition",
		Args:  cobra.ExactArgs(1),
		RunE:  runAgentCreate,
	}

	agentListCmd = &cobra.Command{
		Use:   "list",
		Short: "List agent definitions",
		RunE:  runAgentList,
	}
)

func init() {
	agentCreateCmd.Flags().StringVar(&agentPrompt, "prompt", "", "System prompt")
	agentCreateCmd.Flags().StringSliceVar(&agentTools, "tools", nil, "Allowed tools (default: the builtin set)")
	agentCreateCmd.Flags().StringVar(&agentModel, "model", "", "Pinned model ID")
	agentCreateCmd.Flags().StringVar(&agentTier, "tier", "", "Capability tier")
	agentCmd.AddCommand(agentCreateCmd, agentListCmd)
	rootCmd.AddCommand(agentCmd)
}

func runAgentCreate(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if strings.TrimSpace(agentPrompt) == "" {
		return fmt.Errorf("--prompt is required")
	}
	a := &store.Agent{
		Name:         args[0],
		SystemPrompt: agentPrompt,
		Tools:        agentTools,
		Model:        agentModel,
		Tier:         agentTier,
		Creator:      "user",
	}
	if err := rt.Store().CreateAgent(a); err != nil {
		return err
	}
	fmt.Printf("agent %s (%s)\n", a.Name, a.ID)
	return nil
}

func runAgentList(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	agents, err := rt.Store().ListAgents()
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Println("No agents.")
		return nil
	}
	for _, a := range agents {
		tools := "default"
		if len(a.Tools) > 0 {
			tools = strings.Join(a.Tools, ",")
		}
		fmt.Printf("%s  %-20s  model=%s tier=%s tools=%s\n", a.ID, a.Name, orDash(a.Model), orDash(a.Tier), tools)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
