package ai

import (
	"context"
	"strings"
)

// Stub is the no-API-key gateway: deterministic echo-style replies and
// empty extractions. Handover detection still runs so the handover path
// stays exercisable in development.
type Stub struct{}

var _ Gateway = (*Stub)(nil)

// NewStub creates the stub gateway.
func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) GenerateReply(ctx context.Context, req ReplyRequest) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.VisitorText)
	reply := "Thanks for your message! A member of our team will get back to you soon."
	if text != "" {
		reply = "Thanks for your message: \"" + text + "\". A member of our team will get back to you soon."
	}
	return &Decision{
		Reply:    reply,
		Handover: DetectHandoverIntent(text),
	}, nil
}

func (s *Stub) ExtractVariables(ctx context.Context, req ExtractRequest) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return map[string]string{}, nil
}
