// Package config provides configuration types and loading for majordomo.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Model     ModelConfig     `json:"model"`
	Providers ProvidersConfig `json:"providers"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Stream    StreamConfig    `json:"stream"`
	Notify    NotifyConfig    `json:"notify"`
	Events    EventsConfig    `json:"events"`
	Tools     ToolsConfig     `json:"tools"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	DataDir   string `json:"dataDir" envconfig:"DATA_DIR"`
	Workspace string `json:"workspace" envconfig:"WORKSPACE"`
}

// ModelConfig groups model and agent-loop settings.
type ModelConfig struct {
	Name        string  `json:"name" envconfig:"MODEL"`
	Tier        string  `json:"tier" envconfig:"MODEL_TIER"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
	// MaxRounds caps tool-call rounds per execution. 0 means unbounded;
	// termination then depends on the model choosing to stop requesting tools.
	MaxRounds int `json:"maxRounds" envconfig:"MAX_ROUNDS"`
}

// ProvidersConfig contains model provider configurations.
type ProvidersConfig struct {
	Anthropic  ProviderConfig `json:"anthropic"`
	OpenAI     ProviderConfig `json:"openai"`
	OpenRouter ProviderConfig `json:"openrouter"`
	Groq       ProviderConfig `json:"groq"`
}

// ProviderConfig holds credentials and endpoint for one provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase" envconfig:"API_BASE"`
}

// DispatchConfig controls background execution and scheduling.
type DispatchConfig struct {
	Enabled       bool          `json:"enabled" envconfig:"DISPATCH_ENABLED"`
	TickInterval  time.Duration `json:"tickInterval" envconfig:"DISPATCH_TICK"`
	MaxAttempts   int           `json:"maxAttempts" envconfig:"DISPATCH_MAX_ATTEMPTS"`
	MaxConcurrent int           `json:"maxConcurrent" envconfig:"DISPATCH_MAX_CONCURRENT"`
	DefaultAgent  string        `json:"defaultAgent" envconfig:"DISPATCH_DEFAULT_AGENT"`
}

// StreamConfig controls the chat stream manager.
type StreamConfig struct {
	// RetainFor is how long a completed stream buffer stays attachable.
	RetainFor time.Duration `json:"retainFor" envconfig:"STREAM_RETAIN_FOR"`
}

// NotifyConfig configures the out-of-band notification side channel.
type NotifyConfig struct {
	SlackWebhookURL string `json:"slackWebhookUrl" envconfig:"SLACK_WEBHOOK_URL"`
	SlackChannel    string `json:"slackChannel" envconfig:"SLACK_CHANNEL"`
}

// EventsConfig configures the event bus sinks.
type EventsConfig struct {
	// KafkaBrokers enables mirroring orchestration events onto a Kafka topic
	// when non-empty.
	KafkaBrokers []string `json:"kafkaBrokers" envconfig:"EVENTS_KAFKA_BROKERS"`
	KafkaTopic   string   `json:"kafkaTopic" envconfig:"EVENTS_KAFKA_TOPIC"`
}

// ToolsConfig groups tool settings.
type ToolsConfig struct {
	ExecTimeout  time.Duration `json:"execTimeout" envconfig:"TOOLS_EXEC_TIMEOUT"`
	FetchTimeout time.Duration `json:"fetchTimeout" envconfig:"TOOLS_FETCH_TIMEOUT"`
	// SpawnMaxDepth limits agent-initiated spawn nesting.
	SpawnMaxDepth      int `json:"spawnMaxDepth" envconfig:"TOOLS_SPAWN_MAX_DEPTH"`
	SpawnMaxConcurrent int `json:"spawnMaxConcurrent" envconfig:"TOOLS_SPAWN_MAX_CONCURRENT"`
}
