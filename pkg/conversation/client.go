// Package conversation keeps a linear chat history against a completion
// backend and dispatches the tool calls the model requests.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	loggerpkg "github.com/minhyannv/logos-assistant-go/pkg/logger"
	"github.com/minhyannv/logos-assistant-go/pkg/telemetry"
	"github.com/minhyannv/logos-assistant-go/pkg/tools"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrConfiguration is wrapped by every precondition failure detected
	// before a request is sent.
	ErrConfiguration          = errors.New("configuration error")
	ErrModelNotSet            = fmt.Errorf("%w: no model specified", ErrConfiguration)
	ErrToolChoiceWithoutTools = fmt.Errorf("%w: tool choice requires tools", ErrConfiguration)
)

// DefaultMaxToolRounds is the number of tool dispatch rounds per completion.
const DefaultMaxToolRounds = 1

// Config is the explicit client configuration. Nothing is read from the
// process environment.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// ReportUnknownTools appends an error tool-result for functions missing
	// from the registry instead of skipping them.
	ReportUnknownTools bool
	Verbose            bool
}

// CompletionOptions controls one RequestCompletion call.
type CompletionOptions struct {
	Temperature     float64
	MaxTokens       int64
	CompletionCount int64
	Tools           []tools.Definition
	ToolChoice      ToolChoice
	PrintResponse   bool
	// MaxToolRounds bounds how many times tool calls are dispatched and
	// followed up. The follow-up that reaches the bound offers no tools.
	MaxToolRounds int
}

// DefaultCompletionOptions mirrors the API defaults with a short response cap.
func DefaultCompletionOptions() CompletionOptions {
	return CompletionOptions{
		Temperature:     1.0,
		MaxTokens:       16,
		CompletionCount: 1,
		PrintResponse:   true,
		MaxToolRounds:   DefaultMaxToolRounds,
	}
}

// Option configures optional client dependencies.
type Option func(*Client)

// WithBackend replaces the OpenAI backend.
func WithBackend(b Backend) Option {
	return func(c *Client) { c.backend = b }
}

// WithTools sets the registry used to dispatch tool calls.
func WithTools(r *tools.Registry) Option {
	return func(c *Client) { c.registry = r }
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithOutput sets where responses and DisplayMessages are written.
func WithOutput(w io.Writer) Option {
	return func(c *Client) { c.out = w }
}

// Client holds conversation state. It is not safe for concurrent use.
type Client struct {
	cfg      Config
	backend  Backend
	registry *tools.Registry
	logger   loggerpkg.Logger
	out      io.Writer
	tracer   trace.Tracer

	model          string
	messages       []Message
	lastResponse   *Response
	conversationID string
}

// New builds a client. Without WithBackend an OpenAI backend is created from
// cfg, which then requires an API key. The model may be empty and set later.
func New(cfg Config, opts ...Option) (*Client, error) {
	c := &Client{
		cfg:            cfg,
		model:          strings.TrimSpace(cfg.Model),
		logger:         loggerpkg.NopLogger{},
		out:            os.Stdout,
		tracer:         telemetry.Tracer(),
		conversationID: uuid.NewString(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = loggerpkg.OrNop(c.logger)
	if c.out == nil {
		c.out = io.Discard
	}

	if c.backend == nil {
		backend, err := NewOpenAIBackend(cfg.APIKey, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		c.backend = backend
	}

	loggerpkg.Debug(cfg.Verbose, c.logger, "conversation client init", map[string]any{
		"conversation_id": c.conversationID,
		"model":           c.model,
		"base_url":        cfg.BaseURL,
		"tools":           c.registry.Names(),
	})
	return c, nil
}

func (c *Client) SetModel(model string) { c.model = strings.TrimSpace(model) }

func (c *Client) Model() string { return c.model }

// ConversationID identifies the current history; it changes on ClearMessages.
func (c *Client) ConversationID() string { return c.conversationID }

// SetSystemMessage replaces the leading system message, or inserts one at
// position 0. The remaining messages keep their order.
func (c *Client) SetSystemMessage(text string) {
	sys := Message{Role: RoleSystem, Content: text}
	if len(c.messages) > 0 && c.messages[0].Role == RoleSystem {
		c.messages[0] = sys
		return
	}
	c.messages = append([]Message{sys}, c.messages...)
}

func (c *Client) AddUserMessage(text string) {
	c.messages = append(c.messages, Message{Role: RoleUser, Content: text})
}

// Messages returns a copy of the history.
func (c *Client) Messages() []Message {
	return append([]Message(nil), c.messages...)
}

func (c *Client) ClearMessages() {
	c.messages = nil
	c.conversationID = uuid.NewString()
}

// LastResponse is the most recent response received, or nil.
func (c *Client) LastResponse() *Response { return c.lastResponse }

// DisplayMessages writes every message as "ROLE: content", unfiltered.
func (c *Client) DisplayMessages() {
	for _, msg := range c.messages {
		_, _ = fmt.Fprintf(c.out, "%s: %s\n", strings.ToUpper(string(msg.Role)), msg.Content)
	}
}

// ListModels returns the model identifiers the backend offers.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	return c.backend.ListModels(ctx)
}

// TruncateMessages drops every message from index n onward. Out of range
// values leave the history unchanged.
func (c *Client) TruncateMessages(n int) {
	if n < 0 || n >= len(c.messages) {
		return
	}
	c.messages = c.messages[:n]
}

// RequestCompletion sends the history, dispatches any requested tools and
// follows up until the tool round budget is spent. Precondition failures wrap
// ErrConfiguration and send nothing. On any other error the history is
// restored to what it was on entry, so no assistant tool call is left
// without its results.
func (c *Client) RequestCompletion(ctx context.Context, opts CompletionOptions) error {
	if c.model == "" {
		loggerpkg.Error(c.logger, "no model specified; set one with SetModel or Config.Model", nil)
		return ErrModelNotSet
	}
	if len(opts.Tools) == 0 && opts.ToolChoice != "" {
		loggerpkg.Error(c.logger, "cannot use tool choice without tools", map[string]any{
			"tool_choice": opts.ToolChoice,
		})
		return ErrToolChoiceWithoutTools
	}
	if len(opts.Tools) > 0 && opts.ToolChoice == "" {
		opts.ToolChoice = ToolChoiceAuto
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = DefaultMaxToolRounds
	}
	if ctx == nil {
		ctx = context.Background()
	}

	mark := len(c.messages)
	resp, err := c.complete(ctx, opts, 0)
	if err != nil {
		c.TruncateMessages(mark)
		return err
	}
	c.handleResponse(resp, opts.PrintResponse)
	return nil
}

func (c *Client) complete(ctx context.Context, opts CompletionOptions, round int) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "conversation.completion", trace.WithAttributes(
		attribute.String("conversation.id", c.conversationID),
		attribute.String("model", c.model),
		attribute.Int("round", round),
		attribute.Int("tools.offered", len(opts.Tools)),
	))
	defer span.End()

	c.debugf("completion: round=%d messages=%d tools=%d", round, len(c.messages), len(opts.Tools))
	resp, err := c.backend.Complete(ctx, Request{
		Model:           c.model,
		Messages:        c.Messages(),
		Temperature:     opts.Temperature,
		MaxTokens:       opts.MaxTokens,
		CompletionCount: opts.CompletionCount,
		Tools:           opts.Tools,
		ToolChoice:      opts.ToolChoice,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("request completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := errors.New("empty completion choices")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	c.lastResponse = resp
	span.SetAttributes(
		attribute.Int64("usage.total_tokens", resp.Usage.TotalTokens),
		attribute.Int("tool_calls", len(resp.Choices[0].Message.ToolCalls)),
	)

	message := resp.Choices[0].Message
	c.messages = append(c.messages, message)

	if len(message.ToolCalls) == 0 || round >= opts.MaxToolRounds {
		if len(message.ToolCalls) > 0 {
			c.debugf("completion: tool round budget spent, leaving %d tool call(s) undispatched", len(message.ToolCalls))
		}
		return resp, nil
	}

	dispatched, err := c.dispatchToolCalls(ctx, message.ToolCalls)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if dispatched == 0 {
		return resp, nil
	}

	next := opts
	if round+1 >= opts.MaxToolRounds {
		next.Tools = nil
		next.ToolChoice = ""
	}
	return c.complete(ctx, next, round+1)
}

func (c *Client) dispatchToolCalls(ctx context.Context, calls []ToolCall) (int, error) {
	dispatched := 0
	for _, call := range calls {
		handler, ok := c.registry.Lookup(call.Name)
		if !ok {
			if !c.cfg.ReportUnknownTools {
				c.debugf("tool: skipping unknown function %q", call.Name)
				continue
			}
			loggerpkg.Warn(c.logger, "model requested unknown tool", map[string]any{
				"tool":         call.Name,
				"tool_call_id": call.ID,
			})
			c.appendToolResult(call, fmt.Sprintf(`{"ok":false,"error":%q}`, "unknown tool: "+call.Name))
			dispatched++
			continue
		}

		output, err := c.callTool(ctx, handler, call)
		if err != nil {
			return dispatched, fmt.Errorf("tool %s: %w", call.Name, err)
		}
		c.appendToolResult(call, output)
		dispatched++
	}
	return dispatched, nil
}

func (c *Client) callTool(ctx context.Context, handler tools.Handler, call ToolCall) (string, error) {
	ctx, span := c.tracer.Start(ctx, "conversation.tool", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	c.debugf("tool: %s args=%s", call.Name, call.Arguments)
	output, err := handler.Call(ctx, call.Arguments)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("tool.result_bytes", len(output)))
	return output, nil
}

func (c *Client) appendToolResult(call ToolCall, content string) {
	c.messages = append(c.messages, Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		Name:       call.Name,
	})
}

func (c *Client) handleResponse(resp *Response, printResponse bool) {
	if !printResponse || resp == nil || len(resp.Choices) == 0 {
		return
	}
	_, _ = fmt.Fprintln(c.out, resp.Choices[0].Message.Content)
}

func (c *Client) debugf(format string, args ...any) {
	loggerpkg.Debugf(c.cfg.Verbose, c.logger, format, args...)
}
