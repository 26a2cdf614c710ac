// Package ai is the gateway to the external model endpoint. It turns
// transcripts into structured bot decisions and extracts typed variables
// from free-form visitor text. Without an API key it degrades to
// deterministic stubs so the rest of the system keeps working.
package ai

import (
	"context"

	"github.com/driftline/driftline/internal/common/config"
	"github.com/driftline/driftline/internal/common/logger"
)

// MaxSuggestions caps quick-reply chips per decision.
const MaxSuggestions = 6

// Turn is one transcript entry sent to the model.
type Turn struct {
	Role string // "visitor" or "agent"
	Text string
}

// ContactInfo is the known-contact block included in prompts.
type ContactInfo struct {
	Name       string
	Email      string
	Phone      string
	Company    string
	Location   string
	Attributes map[string]string
}

// ToolParam describes one parameter of a tool-flow.
type ToolParam struct {
	Key      string
	Label    string
	Required bool
}

// ToolSpec describes a flow exposed to the model as a callable tool.
type ToolSpec struct {
	Name        string
	FlowID      string
	Description string
	Params      []ToolParam
}

// TriggerFlow is the model's request to run a tool-flow.
type TriggerFlow struct {
	FlowID    string            `json:"flowId"`
	Variables map[string]string `json:"variables"`
}

// Decision is the structured outcome of a reply generation.
type Decision struct {
	Reply       string       `json:"reply"`
	Handover    bool         `json:"handover,omitempty"`
	CloseChat   bool         `json:"closeChat,omitempty"`
	Suggestions []string     `json:"suggestions,omitempty"`
	TriggerFlow *TriggerFlow `json:"triggerFlow,omitempty"`
}

// ReplyRequest carries everything the gateway needs to generate a reply.
type ReplyRequest struct {
	TenantID    string
	SessionID   string
	FlowPrompt  string
	VisitorText string
	Transcript  []Turn // most recent last
	Contact     ContactInfo
	Tools       []ToolSpec
}

// VariableSpec names one variable to extract.
type VariableSpec struct {
	Key   string
	Label string
}

// ExtractRequest carries the inputs of a variable extraction.
type ExtractRequest struct {
	SessionID   string
	VisitorText string
	Transcript  []Turn
	Contact     ContactInfo
	Variables   []VariableSpec
}

// Gateway generates bot decisions and extracts variables. Implementations
// never fail the conversation: transport and parse failures surface as
// fallback decisions or empty maps, and the returned error is reserved for
// context cancellation.
type Gateway interface {
	GenerateReply(ctx context.Context, req ReplyRequest) (*Decision, error)
	ExtractVariables(ctx context.Context, req ExtractRequest) (map[string]string, error)
}

// New selects the gateway implementation from configuration: the OpenAI
// client when an API key is present, the stub otherwise.
func New(cfg config.AIConfig, log *logger.Logger) Gateway {
	if cfg.APIKey == "" {
		log.Info("ai gateway running in stub mode (no API key configured)")
		return NewStub()
	}
	return NewOpenAI(cfg, log)
}

func capSuggestions(s []string) []string {
	if len(s) > MaxSuggestions {
		return s[:MaxSuggestions]
	}
	return s
}
