package ai

import (
	"encoding/json"
	"strings"
)

// handoverLexicon is matched case-insensitively against visitor or model
// text to detect a request for a human agent.
var handoverLexicon = []string{
	"human",
	"real person",
	"representative",
	"live agent",
	"transfer",
	"handover",
	"talk to agent",
	"speak to agent",
}

// DetectHandoverIntent reports whether text asks for a human agent.
func DetectHandoverIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range handoverLexicon {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// rawDecision mirrors the JSON contract the model is instructed to emit.
// Suggestions tolerate non-string members by dropping them.
type rawDecision struct {
	Reply       string            `json:"reply"`
	Handover    bool              `json:"handover"`
	CloseChat   bool              `json:"closeChat"`
	Suggestions []json.RawMessage `json:"suggestions"`
	TriggerFlow *TriggerFlow      `json:"triggerFlow"`
}

// parseDecision recovers a Decision from model output. It tries, in order:
// the whole text as JSON, the contents of a fenced code block, and the
// substring between the first '{' and the last '}'. When none parse, the
// text itself becomes the reply with heuristic handover detection.
func parseDecision(text string) *Decision {
	trimmed := strings.TrimSpace(text)

	for _, candidate := range jsonCandidates(trimmed) {
		var raw rawDecision
		if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
			continue
		}
		if raw.Reply == "" && raw.TriggerFlow == nil && !raw.Handover && !raw.CloseChat {
			continue
		}
		return decisionFromRaw(raw)
	}

	return &Decision{
		Reply:    trimmed,
		Handover: DetectHandoverIntent(trimmed),
	}
}

func jsonCandidates(text string) []string {
	var candidates []string
	if strings.HasPrefix(text, "{") {
		candidates = append(candidates, text)
	}
	if fenced := extractFenced(text); fenced != "" {
		candidates = append(candidates, fenced)
	}
	if first, last := strings.Index(text, "{"), strings.LastIndex(text, "}"); first >= 0 && last > first {
		candidates = append(candidates, text[first:last+1])
	}
	return candidates
}

// extractFenced returns the body of the first ``` block, tolerating a
// language tag on the opening fence.
func extractFenced(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return ""
	}
	body := text[start+3:]
	if nl := strings.Index(body, "\n"); nl >= 0 {
		firstLine := strings.TrimSpace(body[:nl])
		if firstLine == "" || !strings.ContainsAny(firstLine, "{}") {
			body = body[nl+1:]
		}
	}
	end := strings.Index(body, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(body[:end])
}

func decisionFromRaw(raw rawDecision) *Decision {
	d := &Decision{
		Reply:     raw.Reply,
		Handover:  raw.Handover,
		CloseChat: raw.CloseChat,
	}
	for _, s := range raw.Suggestions {
		var str string
		if err := json.Unmarshal(s, &str); err == nil && str != "" {
			d.Suggestions = append(d.Suggestions, str)
		}
	}
	d.Suggestions = capSuggestions(d.Suggestions)
	if raw.TriggerFlow != nil && raw.TriggerFlow.FlowID != "" {
		tf := *raw.TriggerFlow
		if tf.Variables == nil {
			tf.Variables = map[string]string{}
		}
		d.TriggerFlow = &tf
	}
	return d
}

// parseExtraction recovers a string map from strictly-JSON model output,
// coercing numeric and boolean values to strings and dropping empties.
func parseExtraction(text string, keys []string) map[string]string {
	out := map[string]string{}
	for _, candidate := range jsonCandidates(strings.TrimSpace(text)) {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
			continue
		}
		for _, key := range keys {
			v, ok := raw[key]
			if !ok {
				continue
			}
			if s := coerceString(v); s != "" {
				out[key] = s
			}
		}
		break
	}
	return out
}

func coerceString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "true"
		}
		return "false"
	}
	return ""
}
