// Package events provides event types and utilities for the Driftline event system.
package events

// Event types for conversations
const (
	ConversationCreated = "conversation.created"
	ConversationUpdated = "conversation.updated"
	ConversationClosed  = "conversation.closed"
)

// Event types for messages
const (
	MessageCreated = "conversation.message.created"
)

// Event types for contacts
const (
	ContactIdentified = "contact.identified"
)

// Event types for CSAT surveys
const (
	CSATSubmitted = "conversation.csat.submitted"
)

// Event types for flow side effects
const (
	WebhookDispatch = "flow.webhook.dispatch"
)

// BuildConversationUpdatedSubject creates a conversation update subject for a specific session
func BuildConversationUpdatedSubject(sessionID string) string {
	return ConversationUpdated + "." + sessionID
}

// BuildConversationUpdatedWildcardSubject creates a wildcard subscription for all conversation updates
func BuildConversationUpdatedWildcardSubject() string {
	return ConversationUpdated + ".*"
}

// BuildConversationClosedSubject creates a closure subject for a specific session
func BuildConversationClosedSubject(sessionID string) string {
	return ConversationClosed + "." + sessionID
}

// BuildMessageCreatedSubject creates a message subject for a specific session
func BuildMessageCreatedSubject(sessionID string) string {
	return MessageCreated + "." + sessionID
}

// BuildCSATSubmittedSubject creates a CSAT subject for a specific session
func BuildCSATSubmittedSubject(sessionID string) string {
	return CSATSubmitted + "." + sessionID
}

// BuildConversationWildcardSubject subscribes to every conversation-scoped event
func BuildConversationWildcardSubject() string {
	return "conversation.>"
}
