package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/agenda-agent/internal/observability/metrics"
	"github.com/wolfman30/agenda-agent/pkg/logging"
)

var tracer = otel.Tracer("agenda.internal.conversation")

// Reply is the orchestrator's answer for one customer message.
type Reply struct {
	Text        string
	ToolResults []ToolResult
	Handoff     bool
}

// Orchestrator drives one model turn with at most one round of tool calls.
type Orchestrator struct {
	client    chatClient
	model     string
	maxTokens int
	tools     *ToolExecutor
	events    *EventLogger
	metrics   *metrics.AgentMetrics
	logger    *logging.Logger
}

// OrchestratorConfig carries the model knobs.
type OrchestratorConfig struct {
	Model     string
	MaxTokens int
}

func NewOrchestrator(client chatClient, tools *ToolExecutor, cfg OrchestratorConfig, events *EventLogger, m *metrics.AgentMetrics, logger *logging.Logger) *Orchestrator {
	if client == nil {
		panic("conversation: chat client cannot be nil")
	}
	if tools == nil {
		panic("conversation: tool executor cannot be nil")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		tools:     tools,
		events:    events,
		metrics:   m,
		logger:    logger,
	}
}

// Respond asks the model for a reply to incoming, executes any tool calls it
// makes, and resolves the text to send. A failed model call returns
// ErrLLMUnavailable and no reply.
func (o *Orchestrator) Respond(ctx context.Context, b *Bundle, incoming string) (*Reply, error) {
	ctx, span := tracer.Start(ctx, "conversation.orchestrate")
	defer span.End()
	span.SetAttributes(
		attribute.String("agent.tenant_id", b.TenantID),
		attribute.String("agent.conversation_id", b.ConversationID.String()),
	)
	log := logging.FromContext(ctx, o.logger)
	convID := b.ConversationID.String()

	req := openai.ChatCompletionRequest{
		Model:      o.model,
		Messages:   BuildMessages(b, incoming),
		Tools:      ToolDefinitions(),
		ToolChoice: "auto",
		MaxTokens:  o.maxTokens,
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	elapsed := time.Since(start)
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("empty choices")
	}
	if err != nil {
		o.metrics.ObserveLLM("error", elapsed.Seconds())
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}
	o.metrics.ObserveLLM("ok", elapsed.Seconds())

	msg := resp.Choices[0].Message
	o.events.LLMResponseGenerated(ctx, convID, b.TenantID, elapsed.Milliseconds(), len(msg.ToolCalls), resp.Usage.TotalTokens)

	reply := &Reply{}
	var fallbacks []string
	for _, tc := range msg.ToolCalls {
		call := DecodeToolCall(tc.Function.Name, tc.Function.Arguments)
		res := o.tools.Execute(ctx, b, call)
		reply.ToolResults = append(reply.ToolResults, res)
		o.events.ToolExecuted(ctx, convID, b.TenantID, res)
		o.metrics.ObserveTool(toolMetricName(call), toolOutcome(res))
		if res.OK {
			if _, ok := call.(RequestHandoff); ok {
				reply.Handoff = true
				o.events.HandoffRequested(ctx, convID, b.TenantID)
			}
		} else {
			log.Warn("tool call failed", "tool", res.Name, "error", res.Err)
		}
		if res.Fallback != "" {
			fallbacks = append(fallbacks, res.Fallback)
		}
	}

	reply.Text = o.resolveText(ctx, b, msg.Content, fallbacks)
	span.SetAttributes(attribute.Int("agent.tool_calls", len(msg.ToolCalls)))
	return reply, nil
}

// resolveText prefers the model's own words; tool fallbacks only fill an empty
// content. Guarded or empty output falls back the same way.
func (o *Orchestrator) resolveText(ctx context.Context, b *Bundle, content string, fallbacks []string) string {
	fallback := replyGeneric
	if len(fallbacks) > 0 {
		fallback = strings.Join(fallbacks, "\n\n")
	}

	text := StripMarkdown(content)
	if text == "" {
		return fallback
	}
	guard := ScanOutputForLeaks(text)
	if guard.Leaked {
		blocked := strings.TrimSpace(guard.Sanitized) == ""
		o.events.OutputGuardTriggered(ctx, b.ConversationID.String(), b.TenantID, guard.Reasons, blocked)
		if blocked {
			return fallback
		}
		return guard.Sanitized
	}
	return text
}

func toolMetricName(call ToolCall) string {
	if _, ok := call.(UnknownTool); ok {
		return "unknown"
	}
	return call.ToolName()
}

func toolOutcome(res ToolResult) string {
	switch {
	case res.OK:
		return "ok"
	case isNotFound(res.Err):
		return "not_found"
	default:
		return "error"
	}
}
