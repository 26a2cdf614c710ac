// Package models defines authored flows (directed graphs of typed nodes),
// the persistent cursors of paused executions, and trigger-fire guards.
package models

import "time"

// NodeType identifies the behavior of a flow node.
type NodeType string

const (
	NodeTrigger    NodeType = "trigger"
	NodeStart      NodeType = "start" // legacy alias for trigger
	NodeMessage    NodeType = "message"
	NodeButtons    NodeType = "buttons"
	NodeSelect     NodeType = "select"
	NodeInputForm  NodeType = "input_form"
	NodeQuickInput NodeType = "quick_input"
	NodeCarousel   NodeType = "carousel"
	NodeAI         NodeType = "ai"
	NodeCondition  NodeType = "condition"
	NodeWait       NodeType = "wait"
	NodeAssign     NodeType = "assign"
	NodeTag        NodeType = "tag"
	NodeSetAttr    NodeType = "set_attribute"
	NodeNote       NodeType = "note"
	NodeWebhook    NodeType = "webhook"
	NodeCSAT       NodeType = "csat"
	NodeClose      NodeType = "close_conversation"
	NodeStartFlow  NodeType = "start_flow"
	NodeEnd        NodeType = "end"
)

// TriggerOn identifies when a trigger node matches.
type TriggerOn string

const (
	TriggerPageOpen     TriggerOn = "page_open"
	TriggerWidgetOpen   TriggerOn = "widget_open"
	TriggerFirstMessage TriggerOn = "first_message"
	TriggerAnyMessage   TriggerOn = "any_message"
)

// EndBehavior is the terminal action of an end node.
type EndBehavior string

const (
	EndStop     EndBehavior = "stop"
	EndClose    EndBehavior = "close"
	EndHandover EndBehavior = "handover"
)

// InputVariable declares one parameter of a flow invoked as a sub-flow or
// AI tool.
type InputVariable struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// Choice is one selectable option of a buttons or select node.
type Choice struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FormField is one input of an input_form node.
type FormField struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder,omitempty"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// CarouselItem is one card of a carousel node.
type CarouselItem struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       string   `json:"price,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Buttons     []Choice `json:"buttons,omitempty"`
}

// Rule is one comparison inside a condition node.
type Rule struct {
	Attribute    string `json:"attribute"`
	Operator     string `json:"operator"`
	Value        string `json:"value,omitempty"`
	AttributeKey string `json:"attributeKey,omitempty"`
}

// NodeData carries the per-kind configuration of a node. Only the fields
// relevant to the node's type are populated; the flat shape mirrors the
// flow builder's JSON.
type NodeData struct {
	// trigger / start
	On       TriggerOn `json:"on,omitempty"`
	Keywords []string  `json:"keywords,omitempty"`

	// message, buttons, note, end, close_conversation
	Text        string   `json:"text,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	DelayMs     int      `json:"delayMs,omitempty"`

	// buttons
	Buttons []Choice `json:"buttons,omitempty"`

	// select
	Placeholder string   `json:"placeholder,omitempty"`
	ButtonLabel string   `json:"buttonLabel,omitempty"`
	Options     []Choice `json:"options,omitempty"`

	// input_form
	SubmitLabel string      `json:"submitLabel,omitempty"`
	Fields      []FormField `json:"fields,omitempty"`

	// quick_input
	InputType    string `json:"inputType,omitempty"`
	VariableName string `json:"variableName,omitempty"`

	// carousel
	Items []CarouselItem `json:"items,omitempty"`

	// ai
	Prompt string `json:"prompt,omitempty"`

	// condition
	Rules         []Rule `json:"rules,omitempty"`
	LogicOperator string `json:"logicOperator,omitempty"`
	Contains      string `json:"contains,omitempty"` // legacy bare substring match

	// wait
	Duration float64 `json:"duration,omitempty"`
	Unit     string  `json:"unit,omitempty"`

	// assign
	TeamName   string `json:"teamName,omitempty"`
	AgentEmail string `json:"agentEmail,omitempty"`

	// tag
	Action string   `json:"action,omitempty"` // add | remove
	Tags   []string `json:"tags,omitempty"`

	// set_attribute
	Scope          string `json:"scope,omitempty"` // contact | conversation
	AttributeName  string `json:"attributeName,omitempty"`
	AttributeValue string `json:"attributeValue,omitempty"`

	// webhook
	URL     string            `json:"url,omitempty"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`

	// csat, close_conversation
	Question string `json:"question,omitempty"`
	AskCSAT  bool   `json:"askCsat,omitempty"`

	// start_flow
	FlowID           string            `json:"flowId,omitempty"`
	VariableBindings map[string]string `json:"variableBindings,omitempty"`
	AICollectInputs  bool              `json:"aiCollectInputs,omitempty"`

	// end
	Behavior EndBehavior `json:"behavior,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// Node is one vertex of a flow graph.
type Node struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`
	Data NodeData `json:"data"`
}

// Edge connects two nodes. SourceHandle selects a branch when the source
// node offers more than one (buttons: btn-N, select: opt-N, condition:
// true/false/else/default).
type Edge struct {
	ID           string `json:"id,omitempty"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// Flow is an authored conversational program.
type Flow struct {
	ID                string          `json:"id"`
	TenantID          string          `json:"tenant_id"`
	Name              string          `json:"name"`
	Enabled           bool            `json:"enabled"`
	InputVariables    []InputVariable `json:"input_variables,omitempty"`
	AITool            bool            `json:"ai_tool"`
	AIToolDescription string          `json:"ai_tool_description,omitempty"`
	Nodes             []Node          `json:"nodes"`
	Edges             []Edge          `json:"edges"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsTriggerNode reports whether n is a flow entry point.
func IsTriggerNode(n *Node) bool {
	return n.Type == NodeTrigger || n.Type == NodeStart
}

// TriggerNode returns the flow's entry node, or nil.
func (f *Flow) TriggerNode() *Node {
	for i := range f.Nodes {
		if IsTriggerNode(&f.Nodes[i]) {
			return &f.Nodes[i]
		}
	}
	return nil
}

// NodeByID returns the node with the given id, or nil.
func (f *Flow) NodeByID(id string) *Node {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}
	return nil
}

// EdgesFrom returns the outgoing edges of a node in authoring order.
func (f *Flow) EdgesFrom(nodeID string) []Edge {
	var out []Edge
	for _, e := range f.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// FirstAIPrompt returns the prompt of the first ai node, or "".
func (f *Flow) FirstAIPrompt() string {
	for i := range f.Nodes {
		if f.Nodes[i].Type == NodeAI {
			return f.Nodes[i].Data.Prompt
		}
	}
	return ""
}

// CursorVersion is the schema version written into new cursors. Cursors
// with an unknown future version are treated as stale.
const CursorVersion = 1

// FlowCursor records the single paused point of an in-progress flow for a
// session. Unique per (tenant, session); writing overwrites any prior cursor.
type FlowCursor struct {
	TenantID  string            `json:"tenant_id"`
	SessionID string            `json:"session_id"`
	FlowID    string            `json:"flow_id"`
	NodeID    string            `json:"node_id"`
	NodeType  NodeType          `json:"node_type"`
	Variables map[string]string `json:"variables"`
	Version   int               `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
}
