package store

import (
	"encoding/json"
	"time"
)

// Conversation is a chat thread. Created on first message, never
// implicitly deleted.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Block is one typed fragment of message content.
// Type is one of "text", "tool_use", "tool_result".
type Block struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`          // tool_use
	Name      string          `json:"name,omitempty"`        // tool_use
	Input     json.RawMessage `json:"input,omitempty"`       // tool_use
	ToolUseID string          `json:"tool_use_id,omitempty"` // tool_result
	Content   string          `json:"content,omitempty"`     // tool_result
	IsError   bool            `json:"is_error,omitempty"`    // tool_result
}

// Message is one entry in a conversation. Either Content or Blocks is
// set; blocks are owned by the message that carries them.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"` // user, assistant, system, tool
	Content        string    `json:"content,omitempty"`
	Blocks         []Block   `json:"blocks,omitempty"`
	Tokens         int       `json:"tokens,omitempty"`
	Model          string    `json:"model,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Agent is a stored agent definition.
type Agent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SystemPrompt string    `json:"system_prompt"`
	Tools        []string  `json:"tools"`
	Model        string    `json:"model,omitempty"`
	Tier         string    `json:"tier,omitempty"`
	Creator      string    `json:"creator,omitempty"` // system, bot, user
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Task is one background execution attempt. The task id doubles as the
// idempotency key for spawn delivery.
type Task struct {
	ID                   string     `json:"id"`
	Type                 string     `json:"type"` // agent, scheduled
	Status               string     `json:"status"`
	Input                string     `json:"input,omitempty"`
	AgentID              string     `json:"agent_id,omitempty"`
	OriginConversationID string     `json:"origin_conversation_id,omitempty"`
	OriginMessageID      string     `json:"origin_message_id,omitempty"`
	RunConversationID    string     `json:"run_conversation_id,omitempty"`
	Result               string     `json:"result,omitempty"`
	ErrorText            string     `json:"error_text,omitempty"`
	Attempts             int        `json:"attempts"`
	CreatedAt            time.Time  `json:"created_at"`
	LastAttemptAt        *time.Time `json:"last_attempt_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// ScheduledTask is a stored recurring or one-shot trigger.
type ScheduledTask struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"` // cron expression or RFC3339 timestamp
	Kind      string     `json:"kind"`     // recurring, one_shot
	AgentID   string     `json:"agent_id,omitempty"`
	Input     string     `json:"input,omitempty"`
	Status    string     `json:"status"` // active, paused, completed
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// EventRecord is one row of the append-only orchestration event log.
type EventRecord struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Source         string    `json:"source"`
	AgentID        string    `json:"agent_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Payload        string    `json:"payload,omitempty"` // JSON blob
	Level          string    `json:"level"`
	CreatedAt      time.Time `json:"created_at"`
}

// Task type constants.
const (
	TaskTypeAgent     = "agent"
	TaskTypeScheduled = "scheduled"
)

// Task status constants. Transitions are monotonic: a terminal status
// (completed, failed, cancelled) is never regressed.
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
	TaskStatusCancelled = "cancelled"
)

// Scheduled task constants.
const (
	ScheduleKindRecurring = "recurring"
	ScheduleKindOneShot   = "one_shot"

	ScheduleStatusActive    = "active"
	ScheduleStatusPaused    = "paused"
	ScheduleStatusCompleted = "completed"
)

// Message role constants.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Block type constants.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)
