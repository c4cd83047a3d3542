// Package store implements sqlite persistence for conversations,
// messages, agents, tasks, schedules, and the orchestration event log.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Store is the single source of truth for all persisted entities.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at dbPath and
// applies the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	// Best-effort migrations for older databases (no-op if column exists).
	_, _ = db.Exec(`ALTER TABLE tasks ADD COLUMN origin_message_id TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE tasks ADD COLUMN run_conversation_id TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE tasks ADD COLUMN last_attempt_at TIMESTAMP`)
	_, _ = db.Exec(`ALTER TABLE messages ADD COLUMN model TEXT DEFAULT ''`)
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for diagnostics.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// ---------------------------------------------------------------------------
// Conversations
// ---------------------------------------------------------------------------

// CreateConversation inserts a conversation, generating the id if empty.
func (s *Store) CreateConversation(c *Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	_, err := s.db.Exec(
		`INSERT INTO conversations (id, title, agent_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.AgentID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// GetConversation returns a conversation by id.
func (s *Store) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	err := s.db.QueryRow(
		`SELECT id, COALESCE(title,''), COALESCE(agent_id,''), created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.AgentID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// ListConversations returns conversations newest first.
func (s *Store) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, COALESCE(title,''), COALESCE(agent_id,''), created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()
	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.AgentID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// AddMessage appends a message and bumps the conversation timestamp.
func (s *Store) AddMessage(m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	blocks := ""
	if len(m.Blocks) > 0 {
		data, err := json.Marshal(m.Blocks)
		if err != nil {
			return fmt.Errorf("marshal blocks: %w", err)
		}
		blocks = string(data)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.Exec(
		`INSERT INTO messages (id, conversation_id, role, content, blocks, tokens, model, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, blocks, m.Tokens, m.Model, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	if _, err := tx.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, m.CreatedAt, m.ConversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return tx.Commit()
}

// ListMessages returns a conversation's messages ordered by creation time.
func (s *Store) ListMessages(conversationID string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, conversation_id, role, COALESCE(content,''), COALESCE(blocks,''), tokens, COALESCE(model,''), created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMessage(rows *sql.Rows) (*Message, error) {
	var m Message
	var blocks string
	if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &blocks, &m.Tokens, &m.Model, &m.CreatedAt); err != nil {
		return nil, err
	}
	if blocks != "" {
		if err := json.Unmarshal([]byte(blocks), &m.Blocks); err != nil {
			return nil, fmt.Errorf("unmarshal blocks for message %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

// HasNewerUserMessage reports whether the conversation holds a user
// message created strictly after the given time, excluding one message
// id (the origin message itself). This is the "has the user moved on"
// check used by delivery reconciliation.
func (s *Store) HasNewerUserMessage(conversationID string, after time.Time, excludeMessageID string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM messages WHERE conversation_id = ? AND role = 'user' AND created_at > ? AND id != ?`,
		conversationID, after, excludeMessageID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("newer user message check: %w", err)
	}
	return n > 0, nil
}

// AddMessageIfIdle inserts the message only if no newer user message
// exists in the conversation. The check and the insert run in one
// transaction, closing the race between "is the user still waiting"
// and the synthesis write. Returns true when the message was written.
func (s *Store) AddMessageIfIdle(m *Message, after time.Time, excludeMessageID string) (bool, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	blocks := ""
	if len(m.Blocks) > 0 {
		data, err := json.Marshal(m.Blocks)
		if err != nil {
			return false, fmt.Errorf("marshal blocks: %w", err)
		}
		blocks = string(data)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var n int
	err = tx.QueryRow(
		`SELECT COUNT(1) FROM messages WHERE conversation_id = ? AND role = 'user' AND created_at > ? AND id != ?`,
		m.ConversationID, after, excludeMessageID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("idle check: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	_, err = tx.Exec(
		`INSERT INTO messages (id, conversation_id, role, content, blocks, tokens, model, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, blocks, m.Tokens, m.Model, m.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("conditional add message: %w", err)
	}
	if _, err := tx.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, m.CreatedAt, m.ConversationID); err != nil {
		return false, fmt.Errorf("touch conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// Agents
// ---------------------------------------------------------------------------

// CreateAgent inserts an agent definition.
func (s *Store) CreateAgent(a *Agent) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt
	if a.Creator == "" {
		a.Creator = "user"
	}
	tools, err := json.Marshal(a.Tools)
	if err != nil {
		return fmt.Errorf("marshal tools: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO agents (id, name, system_prompt, tools, model, tier, creator, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.SystemPrompt, string(tools), a.Model, a.Tier, a.Creator, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// GetAgent returns an agent by id.
func (s *Store) GetAgent(id string) (*Agent, error) {
	var a Agent
	var tools string
	err := s.db.QueryRow(
		`SELECT id, name, COALESCE(system_prompt,''), COALESCE(tools,'[]'), COALESCE(model,''), COALESCE(tier,''), COALESCE(creator,''), created_at, updated_at
		 FROM agents WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.SystemPrompt, &tools, &a.Model, &a.Tier, &a.Creator, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	if err := json.Unmarshal([]byte(tools), &a.Tools); err != nil {
		return nil, fmt.Errorf("unmarshal agent tools: %w", err)
	}
	return &a, nil
}

// UpdateAgent rewrites an agent definition (explicit update only).
func (s *Store) UpdateAgent(a *Agent) error {
	tools, err := json.Marshal(a.Tools)
	if err != nil {
		return fmt.Errorf("marshal tools: %w", err)
	}
	a.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE agents SET name = ?, system_prompt = ?, tools = ?, model = ?, tier = ?, updated_at = ? WHERE id = ?`,
		a.Name, a.SystemPrompt, string(tools), a.Model, a.Tier, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %s: %w", a.ID, ErrNotFound)
	}
	return nil
}

// ListAgents returns all agent definitions.
func (s *Store) ListAgents() ([]Agent, error) {
	rows, err := s.db.Query(
		`SELECT id, name, COALESCE(system_prompt,''), COALESCE(tools,'[]'), COALESCE(model,''), COALESCE(tier,''), COALESCE(creator,''), created_at, updated_at
		 FROM agents ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()
	var out []Agent
	for rows.Next() {
		var a Agent
		var tools string
		if err := rows.Scan(&a.ID, &a.Name, &a.SystemPrompt, &tools, &a.Model, &a.Tier, &a.Creator, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tools), &a.Tools); err != nil {
			return nil, fmt.Errorf("unmarshal agent tools: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

// CreateTask inserts a task row. If a row with the same id already
// exists (a redelivered spawn), the existing row is returned unchanged
// and created reports false.
func (s *Store) CreateTask(t *Task) (created bool, err error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Type == "" {
		t.Type = TaskTypeAgent
	}
	if t.Status == "" {
		t.Status = TaskStatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO tasks (id, type, status, input, agent_id, origin_conversation_id, origin_message_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Type, t.Status, t.Input, t.AgentID, t.OriginConversationID, t.OriginMessageID, t.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("create task: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

const taskSelect = `SELECT id, type, status, COALESCE(input,''), COALESCE(agent_id,''), COALESCE(origin_conversation_id,''), COALESCE(origin_message_id,''),
       COALESCE(run_conversation_id,''), COALESCE(result,''), COALESCE(error_text,''), attempts, created_at, last_attempt_at, completed_at
FROM tasks`

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var lastAttemptAt, completedAt sql.NullTime
	err := row.Scan(&t.ID, &t.Type, &t.Status, &t.Input, &t.AgentID, &t.OriginConversationID, &t.OriginMessageID,
		&t.RunConversationID, &t.Result, &t.ErrorText, &t.Attempts, &t.CreatedAt, &lastAttemptAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if lastAttemptAt.Valid {
		t.LastAttemptAt = &lastAttemptAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

// GetTask returns a task by id, or (nil, nil) when absent — callers use
// the nil result for dedup decisions.
func (s *Store) GetTask(id string) (*Task, error) {
	t, err := scanTask(s.db.QueryRow(taskSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ClaimTask atomically transitions a task from pending to running,
// increments its attempt counter, and stamps the attempt time. Returns
// false when the task is not in a claimable state — the idempotent
// re-entry guard for duplicate deliveries.
func (s *Store) ClaimTask(id string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE tasks SET status = ?, attempts = attempts + 1, last_attempt_at = ? WHERE id = ? AND status = ?`,
		TaskStatusRunning, time.Now().UTC(), id, TaskStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetTaskRunConversation records the conversation created for a task's
// execution, only if none is recorded yet. Re-delivered tasks reuse the
// original conversation instead of creating a second one.
func (s *Store) SetTaskRunConversation(id, conversationID string) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET run_conversation_id = ? WHERE id = ? AND COALESCE(run_conversation_id,'') = ''`,
		conversationID, id,
	)
	if err != nil {
		return fmt.Errorf("set task run conversation: %w", err)
	}
	return nil
}

// CompleteTask marks a task completed with its serialized result.
// Terminal statuses are never overwritten.
func (s *Store) CompleteTask(id, result string) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET status = ?, result = ?, completed_at = ? WHERE id = ? AND status NOT IN (?, ?, ?)`,
		TaskStatusCompleted, result, time.Now().UTC(), id,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// FailTask records a failure. When final is false the task returns to
// pending so the dispatcher may retry it.
func (s *Store) FailTask(id, errorText string, final bool) error {
	status := TaskStatusPending
	var completedAt interface{}
	if final {
		status = TaskStatusFailed
		completedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`UPDATE tasks SET status = ?, error_text = ?, completed_at = ? WHERE id = ? AND status NOT IN (?, ?, ?)`,
		status, errorText, completedAt, id,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	return nil
}

// ListTasks returns tasks filtered by optional status, newest first.
func (s *Store) ListTasks(status string, limit, offset int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	query := taskSelect + ` WHERE 1=1`
	args := []interface{}{}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Scheduled tasks
// ---------------------------------------------------------------------------

// CreateScheduledTask inserts a schedule row.
func (s *Store) CreateScheduledTask(t *ScheduledTask) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Kind == "" {
		t.Kind = ScheduleKindRecurring
	}
	if t.Status == "" {
		t.Status = ScheduleStatusActive
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	var nextRun interface{}
	if t.NextRunAt != nil {
		nextRun = *t.NextRunAt
	}
	_, err := s.db.Exec(
		`INSERT INTO scheduled_tasks (id, name, schedule, kind, agent_id, input, status, next_run_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Schedule, t.Kind, t.AgentID, t.Input, t.Status, nextRun, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create scheduled task: %w", err)
	}
	return nil
}

// GetScheduledTask returns a schedule by id.
func (s *Store) GetScheduledTask(id string) (*ScheduledTask, error) {
	row := s.db.QueryRow(scheduledSelect+` WHERE id = ?`, id)
	t, err := scanScheduled(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scheduled task %s: %w", id, ErrNotFound)
	}
	return t, err
}

const scheduledSelect = `SELECT id, name, schedule, kind, COALESCE(agent_id,''), COALESCE(input,''), status, last_run_at, next_run_at, created_at FROM scheduled_tasks`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScheduled(row rowScanner) (*ScheduledTask, error) {
	var t ScheduledTask
	var lastRun, nextRun sql.NullTime
	err := row.Scan(&t.ID, &t.Name, &t.Schedule, &t.Kind, &t.AgentID, &t.Input, &t.Status, &lastRun, &nextRun, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		t.LastRunAt = &lastRun.Time
	}
	if nextRun.Valid {
		t.NextRunAt = &nextRun.Time
	}
	return &t, nil
}

// DueScheduledTasks returns active schedules whose next run time has
// passed, oldest first.
func (s *Store) DueScheduledTasks(now time.Time, limit int) ([]ScheduledTask, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		scheduledSelect+` WHERE status = ? AND next_run_at IS NOT NULL AND next_run_at <= ? ORDER BY next_run_at ASC LIMIT ?`,
		ScheduleStatusActive, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("due scheduled tasks: %w", err)
	}
	defer rows.Close()
	var out []ScheduledTask
	for rows.Next() {
		t, err := scanScheduled(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ListScheduledTasks returns schedules filtered by optional status.
func (s *Store) ListScheduledTasks(status string) ([]ScheduledTask, error) {
	query := scheduledSelect
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scheduled tasks: %w", err)
	}
	defer rows.Close()
	var out []ScheduledTask
	for rows.Next() {
		t, err := scanScheduled(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// MarkScheduledRun records a firing: last run time, the advanced next
// run pointer (nil for one-shot), and the resulting status.
func (s *Store) MarkScheduledRun(id string, firedAt time.Time, next *time.Time, status string) error {
	var nextVal interface{}
	if next != nil {
		nextVal = next.UTC()
	}
	_, err := s.db.Exec(
		`UPDATE scheduled_tasks SET last_run_at = ?, next_run_at = ?, status = ? WHERE id = ?`,
		firedAt.UTC(), nextVal, status, id,
	)
	if err != nil {
		return fmt.Errorf("mark scheduled run: %w", err)
	}
	return nil
}

// SetScheduledStatus pauses or resumes a schedule.
func (s *Store) SetScheduledStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE scheduled_tasks SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set scheduled status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("scheduled task %s: %w", id, ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// AddEvent appends to the event log. Rows are write-once.
func (s *Store) AddEvent(e *EventRecord) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Level == "" {
		e.Level = "info"
	}
	_, err := s.db.Exec(
		`INSERT INTO events (id, type, source, agent_id, conversation_id, payload, level, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.Source, e.AgentID, e.ConversationID, e.Payload, e.Level, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	return nil
}

// EventFilter narrows ListEvents results.
type EventFilter struct {
	Type           string
	AgentID        string
	ConversationID string
	Limit          int
}

// ListEvents returns log entries newest first.
func (s *Store) ListEvents(f EventFilter) ([]EventRecord, error) {
	query := `SELECT id, type, COALESCE(source,''), COALESCE(agent_id,''), COALESCE(conversation_id,''), COALESCE(payload,''), level, created_at FROM events WHERE 1=1`
	args := []interface{}{}
	if f.Type != "" {
		query += " AND type = ?"
		args = append(args, f.Type)
	}
	if f.AgentID != "" {
		query += " AND agent_id = ?"
		args = append(args, f.AgentID)
	}
	if f.ConversationID != "" {
		query += " AND conversation_id = ?"
		args = append(args, f.ConversationID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	var out []EventRecord
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(&e.ID, &e.Type, &e.Source, &e.AgentID, &e.ConversationID, &e.Payload, &e.Level, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns a setting value by key ("" when unset).
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return val, nil
}

// SetSetting persists a setting value.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	return err
}
