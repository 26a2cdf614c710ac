package ai

import (
	"context"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/driftline/driftline/internal/common/config"
	"github.com/driftline/driftline/internal/common/logger"
)

const fallbackReply = "Sorry, I'm having trouble responding right now. " +
	"Please try again in a moment or ask for a human agent."

// OpenAIGateway implements Gateway against an OpenAI-compatible chat
// completion endpoint.
type OpenAIGateway struct {
	client oai.Client
	model  string
	logger *logger.Logger
}

var _ Gateway = (*OpenAIGateway)(nil)

// NewOpenAI builds the gateway from configuration. The per-request timeout
// lives on the HTTP client so every call is bounded even without a
// context deadline.
func NewOpenAI(cfg config.AIConfig, log *logger.Logger) *OpenAIGateway {
	timeout := cfg.RequestTimeoutDuration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIGateway{
		client: oai.NewClient(reqOpts...),
		model:  cfg.Model,
		logger: log.WithFields(zap.String("component", "ai-gateway")),
	}
}

// GenerateReply asks the model for a structured decision. Transport
// failures degrade to a fixed apology with heuristic handover detection on
// the visitor text; malformed model output degrades inside parseDecision.
func (g *OpenAIGateway) GenerateReply(ctx context.Context, req ReplyRequest) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := g.complete(ctx,
		buildReplySystemPrompt(req),
		buildReplyUserPrompt(req),
		param.NewOpt(0.7))
	if err != nil {
		g.logger.Warn("reply generation failed, using fallback",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		return &Decision{
			Reply:    fallbackReply,
			Handover: DetectHandoverIntent(req.VisitorText),
		}, nil
	}
	decision := parseDecision(text)
	decision.Suggestions = capSuggestions(decision.Suggestions)
	return decision, nil
}

// ExtractVariables asks the model to pull the requested values from the
// conversation. Any failure returns the empty map.
func (g *OpenAIGateway) ExtractVariables(ctx context.Context, req ExtractRequest) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Variables) == 0 {
		return map[string]string{}, nil
	}
	text, err := g.complete(ctx,
		buildExtractSystemPrompt(req),
		buildExtractUserPrompt(req),
		param.NewOpt(0.0))
	if err != nil {
		g.logger.Warn("variable extraction failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		return map[string]string{}, nil
	}
	keys := make([]string, len(req.Variables))
	for i, v := range req.Variables {
		keys[i] = v.Key
	}
	return parseExtraction(text, keys), nil
}

func (g *OpenAIGateway) complete(ctx context.Context, system, user string, temperature param.Opt[float64]) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(user),
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyChoices
	}
	return resp.Choices[0].Message.Content, nil
}

var errEmptyChoices = &gatewayError{"empty choices in model response"}

type gatewayError struct{ msg string }

func (e *gatewayError) Error() string { return e.msg }
