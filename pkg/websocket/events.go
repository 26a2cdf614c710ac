package websocket

// Event names for WebSocket envelopes
const (
	// Widget socket (visitor side)
	EventWidgetJoin    = "widget:join"
	EventWidgetMessage = "widget:message"
	EventWidgetOpened  = "widget:opened"
	EventVisitorTyping = "visitor:typing" // inbound from the widget, relayed to agents

	// Agent dashboard socket
	EventAgentJoin           = "agent:join"
	EventAgentWatchSession   = "agent:watch-session"
	EventAgentRequestHistory = "agent:request-history"
	EventAgentTyping         = "agent:typing"
	EventAgentMessage        = "agent:message"

	// Server pushes
	EventSessionHistory  = "session:history"
	EventSessionsList    = "sessions:list"
	EventSessionUpdated  = "session:updated"
	EventSessionSwitched = "session:switched"
	EventMessageNew      = "message:new"
	EventTyping          = "typing"
	EventAuthError       = "auth:error"
)

// Error codes carried in ErrorData
const (
	ErrorCodeBadRequest    = "BAD_REQUEST"
	ErrorCodeUnauthorized  = "UNAUTHORIZED"
	ErrorCodeNotFound      = "NOT_FOUND"
	ErrorCodeInternalError = "INTERNAL_ERROR"
)
