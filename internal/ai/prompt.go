package ai

import (
	"fmt"
	"strings"
)

const (
	replyTranscriptTurns   = 14
	extractTranscriptTurns = 20
)

const defaultFlowPrompt = "You are a friendly support assistant for this business. " +
	"Answer concisely and helpfully."

// buildReplySystemPrompt assembles the system prompt of generate_reply:
// the flow prompt, the contact block, the tool catalog, and the JSON
// output contract.
func buildReplySystemPrompt(req ReplyRequest) string {
	var b strings.Builder

	prompt := strings.TrimSpace(req.FlowPrompt)
	if prompt == "" {
		prompt = defaultFlowPrompt
	}
	b.WriteString(prompt)
	b.WriteString("\n\n")

	if block := contactBlock(req.Contact); block != "" {
		b.WriteString("Known visitor information:\n")
		b.WriteString(block)
		b.WriteString("\n")
	}

	if len(req.Tools) > 0 {
		b.WriteString("You can trigger the following automated flows when the visitor's request matches one:\n")
		for _, tool := range req.Tools {
			fmt.Fprintf(&b, "- %s (id: %s): %s\n", tool.Name, tool.FlowID, tool.Description)
			for _, p := range tool.Params {
				kind := "optional"
				if p.Required {
					kind = "required"
				}
				fmt.Fprintf(&b, "    parameter %s (%s, %s)\n", p.Key, p.Label, kind)
			}
		}
		b.WriteString("Only trigger a flow when the visitor clearly asks for it. " +
			"Fill variables from the conversation; leave unknown ones empty.\n\n")
	}

	b.WriteString("Respond with JSON only, no prose around it:\n")
	b.WriteString(`{"reply": "your message to the visitor", "handover": false, "closeChat": false, ` +
		`"suggestions": ["up to 6 short quick replies"], "triggerFlow": null}` + "\n")
	b.WriteString("Set handover to true only when the visitor asks for a human. " +
		"Set closeChat to true only when the conversation is clearly finished. " +
		`To trigger a flow set triggerFlow to {"flowId": "...", "variables": {"key": "value"}}.`)
	return b.String()
}

// buildReplyUserPrompt renders the recent transcript plus the current
// visitor message.
func buildReplyUserPrompt(req ReplyRequest) string {
	var b strings.Builder
	if transcript := renderTranscript(req.Transcript, replyTranscriptTurns); transcript != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(transcript)
		b.WriteString("\n")
	}
	b.WriteString("Visitor: ")
	b.WriteString(req.VisitorText)
	return b.String()
}

// buildExtractSystemPrompt instructs strictly-JSON extraction of the
// requested variables.
func buildExtractSystemPrompt(req ExtractRequest) string {
	var b strings.Builder
	b.WriteString("Extract the following values from the conversation. ")
	b.WriteString("Respond with a single JSON object containing exactly these keys and string values. ")
	b.WriteString("Use an empty string for anything not mentioned. No prose, no code fences.\n")
	for _, v := range req.Variables {
		fmt.Fprintf(&b, "- %s: %s\n", v.Key, v.Label)
	}
	if block := contactBlock(req.Contact); block != "" {
		b.WriteString("Known visitor information:\n")
		b.WriteString(block)
	}
	return b.String()
}

func buildExtractUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if transcript := renderTranscript(req.Transcript, extractTranscriptTurns); transcript != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(transcript)
		b.WriteString("\n")
	}
	b.WriteString("Visitor: ")
	b.WriteString(req.VisitorText)
	return b.String()
}

func renderTranscript(turns []Turn, limit int) string {
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	var b strings.Builder
	for _, t := range turns {
		role := "Visitor"
		if t.Role != "visitor" {
			role = "Agent"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, t.Text)
	}
	return b.String()
}

func contactBlock(c ContactInfo) string {
	var b strings.Builder
	appendField := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "- %s: %s\n", label, value)
		}
	}
	appendField("name", c.Name)
	appendField("email", c.Email)
	appendField("phone", c.Phone)
	appendField("company", c.Company)
	appendField("location", c.Location)
	for k, v := range c.Attributes {
		appendField(k, v)
	}
	return b.String()
}
