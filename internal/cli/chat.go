package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/majordomo-ai/majordomo/internal/agent"
	"github.com/majordomo-ai/majordomo/internal/runtime"
	"github.com/majordomo-ai/majordomo/internal/stream"
)

var (
	chatMessage      string
	chatConversation string
	chatModel        string
	chatTier         string
	chatAttach       bool

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant",
		Long: "Chat with the assistant. With --message a single turn runs and the\n" +
			"command exits; without it an interactive session starts. Use\n" +
			"--conversation to continue an existing thread and --attach to rejoin\n" +
			"a turn that is still streaming after a disconnect.",
		RunE: runChat,
	}
)

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send one message and exit")
	chatCmd.Flags().StringVarP(&chatConversation, "conversation", "c", "", "Conversation ID to continue")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "Explicit model ID (optionally provider:model)")
	chatCmd.Flags().StringVar(&chatTier, "tier", "", "Capability tier (fast, standard, powerful)")
	chatCmd.Flags().BoolVar(&chatAttach, "attach", false, "Re-attach to the conversation's running turn")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if chatAttach {
		if chatConversation == "" {
			return fmt.Errorf("--attach requires --conversation")
		}
		return attachTurn(rt, chatConversation)
	}

	if chatMessage != "" {
		_, err := sendTurn(rt, chatConversation, chatMessage)
		return err
	}
	return interactive(rt)
}

// sendTurn runs one user turn and renders its stream to completion.
func sendTurn(rt *runtime.Runtime, conversationID, message string) (string, error) {
	convID, err := rt.Handle(context.Background(), conversationID, message, chatModel, chatTier)
	if err != nil {
		return "", err
	}
	if conversationID == "" {
		color.New(color.Faint).Printf("conversation %s\n", convID)
	}
	if err := drainStream(rt, convID, false); err != nil {
		return convID, err
	}
	return convID, nil
}

// attachTurn rejoins an in-flight turn, replaying only what the current
// turn has produced so far.
func attachTurn(rt *runtime.Runtime, conversationID string) error {
	return drainStream(rt, conversationID, true)
}

func drainStream(rt *runtime.Runtime, conversationID string, fromCurrentTurn bool) error {
	attach := func(fn stream.Subscriber) (func(), bool) { return rt.Attach(conversationID, fn) }
	if fromCurrentTurn {
		attach = func(fn stream.Subscriber) (func(), bool) { return rt.AttachFromCurrentTurn(conversationID, fn) }
	}
	return drainChunks(attach, func() bool { return rt.StreamActive(conversationID) }, conversationID)
}

// drainChunks renders a chunk stream until its terminal chunk. The
// renderer goroutine must be consuming before attach runs: the replay
// happens synchronously inside the subscription and subscriber
// callbacks must not block.
func drainChunks(attach func(stream.Subscriber) (func(), bool), active func() bool, conversationID string) error {
	chunks := make(chan agent.Chunk, 256)
	done := make(chan error, 1)
	go func() {
		for c := range chunks {
			renderChunk(c)
			switch c.Kind {
			case agent.ChunkDone:
				done <- nil
				return
			case agent.ChunkError:
				done <- fmt.Errorf("%s", c.Error)
				return
			}
		}
		done <- nil
	}()

	unsub, found := attach(func(c agent.Chunk) { chunks <- c })
	if !found {
		close(chunks)
		<-done
		return fmt.Errorf("no active or recent stream for conversation %s", conversationID)
	}
	defer unsub()

	// A finished stream delivered everything during the replay; no
	// terminal chunk is coming over the live fan-out, so end the feed.
	if !active() {
		close(chunks)
	}
	return <-done
}

func renderChunk(c agent.Chunk) {
	switch c.Kind {
	case agent.ChunkText:
		fmt.Print(c.Text)
	case agent.ChunkToolExecuting:
		if c.ToolCall != nil {
			color.New(color.FgYellow).Printf("\n[%s]\n", c.ToolCall.Name)
		}
	case agent.ChunkToolResult:
		if c.ToolResult != nil && c.ToolResult.IsError {
			color.New(color.FgRed).Printf("[%s failed] %s\n", c.ToolResult.Name, firstLine(c.ToolResult.Content))
		}
	case agent.ChunkDone:
		fmt.Println()
	case agent.ChunkError:
		color.New(color.FgRed).Printf("\nerror: %s\n", c.Error)
	}
}

func interactive(rt *runtime.Runtime) error {
	printHeader("majordomo")
	fmt.Println("Type a message, or /quit to exit.")

	convID := chatConversation
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		color.New(color.FgGreen, color.Bold).Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		}

		id, err := sendTurn(rt, convID, line)
		if err != nil {
			color.New(color.FgRed).Printf("error: %v\n", err)
			continue
		}
		convID = id
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
