package conversation

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	loggerpkg "github.com/minhyannv/logos-assistant-go/pkg/logger"
	"github.com/minhyannv/logos-assistant-go/pkg/tools"
)

type fakeBackend struct {
	responses []*Response
	requests  []Request
	err       error
}

func (b *fakeBackend) Complete(_ context.Context, req Request) (*Response, error) {
	b.requests = append(b.requests, req)
	if b.err != nil {
		return nil, b.err
	}
	if len(b.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	resp := b.responses[0]
	b.responses = b.responses[1:]
	return resp, nil
}

func (b *fakeBackend) ListModels(context.Context) ([]string, error) {
	return []string{"gpt-4o", "gpt-4o-mini"}, nil
}

func textResponse(content string) *Response {
	return &Response{ID: "resp-" + content, Choices: []Choice{{
		Message:      Message{Role: RoleAssistant, Content: content},
		FinishReason: "stop",
	}}}
}

func toolResponse(calls ...ToolCall) *Response {
	return &Response{ID: "resp-tools", Choices: []Choice{{
		Message:      Message{Role: RoleAssistant, ToolCalls: calls},
		FinishReason: "tool_calls",
	}}}
}

type recordingTool struct {
	calls []string
}

func (r *recordingTool) handler() tools.Handler {
	type args struct {
		Query string `json:"query"`
	}
	return tools.NewFunc(tools.SearchLibraryName, "search", func(_ context.Context, a args) (string, error) {
		r.calls = append(r.calls, a.Query)
		return `[{"title":"` + a.Query + `","resource_id":"","version":"","resource_type":"","abbreviated_title":""}]`, nil
	})
}

func newTestClient(t *testing.T, backend *fakeBackend, registry *tools.Registry, cfg Config) (*Client, *bytes.Buffer) {
	t.Helper()
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	var out bytes.Buffer
	c, err := New(cfg, WithBackend(backend), WithTools(registry), WithOutput(&out))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return c, &out
}

func roles(msgs []Message) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = string(m.Role)
	}
	return strings.Join(parts, ",")
}

func TestSetSystemMessageOnEmptyHistory(t *testing.T) {
	c, _ := newTestClient(t, &fakeBackend{}, nil, Config{})
	c.SetSystemMessage("be brief")

	msgs := c.Messages()
	if len(msgs) != 1 || msgs[0].Role != RoleSystem || msgs[0].Content != "be brief" {
		t.Fatalf("unexpected history: %+v", msgs)
	}
}

func TestSetSystemMessagePreservesOrder(t *testing.T) {
	c, _ := newTestClient(t, &fakeBackend{}, nil, Config{})
	c.SetSystemMessage("old")
	c.AddUserMessage("one")
	c.AddUserMessage("two")

	c.SetSystemMessage("new")
	msgs := c.Messages()
	if got := roles(msgs); got != "system,user,user" {
		t.Fatalf("unexpected roles: %s", got)
	}
	if msgs[0].Content != "new" || msgs[1].Content != "one" || msgs[2].Content != "two" {
		t.Fatalf("unexpected history: %+v", msgs)
	}

	c2, _ := newTestClient(t, &fakeBackend{}, nil, Config{})
	c2.AddUserMessage("hi")
	c2.SetSystemMessage("sys")
	if got := roles(c2.Messages()); got != "system,user" {
		t.Fatalf("expected system inserted before user, got %s", got)
	}
}

func TestClearThenAddUserMessage(t *testing.T) {
	c, _ := newTestClient(t, &fakeBackend{}, nil, Config{})
	c.SetSystemMessage("sys")
	c.AddUserMessage("first")
	before := c.ConversationID()

	c.ClearMessages()
	c.AddUserMessage("hi")

	msgs := c.Messages()
	if len(msgs) != 1 || msgs[0].Role != RoleUser || msgs[0].Content != "hi" {
		t.Fatalf("unexpected history: %+v", msgs)
	}
	if c.ConversationID() == before {
		t.Fatal("expected a new conversation id after clear")
	}
}

func TestRequestCompletionRequiresModel(t *testing.T) {
	backend := &fakeBackend{}
	var logs bytes.Buffer
	c, err := New(Config{}, WithBackend(backend), WithLogger(loggerpkg.NewJSONLogger(&logs, true)))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	c.AddUserMessage("hi")

	err = c.RequestCompletion(context.Background(), DefaultCompletionOptions())
	if !errors.Is(err, ErrModelNotSet) || !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected model configuration error, got %v", err)
	}
	if len(backend.requests) != 0 {
		t.Fatalf("expected no network call, got %d", len(backend.requests))
	}
	if !strings.Contains(logs.String(), "no model specified") {
		t.Fatalf("expected diagnostic, got %q", logs.String())
	}
}

func TestRequestCompletionToolChoiceWithoutTools(t *testing.T) {
	backend := &fakeBackend{}
	c, _ := newTestClient(t, backend, nil, Config{})
	c.AddUserMessage("hi")

	opts := DefaultCompletionOptions()
	opts.ToolChoice = ToolChoiceRequired
	err := c.RequestCompletion(context.Background(), opts)
	if !errors.Is(err, ErrToolChoiceWithoutTools) || !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected tool choice configuration error, got %v", err)
	}
	if len(backend.requests) != 0 {
		t.Fatalf("expected no network call, got %d", len(backend.requests))
	}
}

func TestRequestCompletionWithoutToolCalls(t *testing.T) {
	backend := &fakeBackend{responses: []*Response{textResponse("Grace and peace.")}}
	c, out := newTestClient(t, backend, nil, Config{})
	c.SetSystemMessage("sys")
	c.AddUserMessage("greet me")

	opts := DefaultCompletionOptions()
	opts.MaxTokens = 64
	if err := c.RequestCompletion(context.Background(), opts); err != nil {
		t.Fatalf("RequestCompletion returned error: %v", err)
	}

	if len(backend.requests) != 1 {
		t.Fatalf("expected one network call, got %d", len(backend.requests))
	}
	req := backend.requests[0]
	if req.Model != "gpt-4o-mini" || req.MaxTokens != 64 || req.Temperature != 1.0 || req.CompletionCount != 1 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if got := roles(c.Messages()); got != "system,user,assistant" {
		t.Fatalf("unexpected roles: %s", got)
	}
	if out.String() != "Grace and peace.\n" {
		t.Fatalf("unexpected printed output: %q", out.String())
	}
	if c.LastResponse() == nil || c.LastResponse().ID != "resp-Grace and peace." {
		t.Fatalf("unexpected last response: %+v", c.LastResponse())
	}
}

func TestRequestCompletionDispatchesToolAndFollowsUpOnce(t *testing.T) {
	rec := &recordingTool{}
	registry := tools.New(rec.handler())
	backend := &fakeBackend{responses: []*Response{
		toolResponse(ToolCall{ID: "call_1", Name: tools.SearchLibraryName, Arguments: `{"query":"Romans"}`}),
		textResponse("You own a Romans commentary."),
	}}
	c, out := newTestClient(t, backend, registry, Config{})
	c.SetSystemMessage("sys")
	c.AddUserMessage("Do I have anything on Romans?")

	opts := DefaultCompletionOptions()
	opts.Tools = registry.Definitions()
	if err := c.RequestCompletion(context.Background(), opts); err != nil {
		t.Fatalf("RequestCompletion returned error: %v", err)
	}

	if len(backend.requests) != 2 {
		t.Fatalf("expected exactly one follow-up, got %d requests", len(backend.requests))
	}
	first, followUp := backend.requests[0], backend.requests[1]
	if first.ToolChoice != ToolChoiceAuto || len(first.Tools) != 1 {
		t.Fatalf("expected tools offered with auto choice, got %+v", first)
	}
	if len(followUp.Tools) != 0 || followUp.ToolChoice != "" {
		t.Fatalf("expected follow-up without tools, got %+v", followUp)
	}
	if followUp.Temperature != first.Temperature || followUp.MaxTokens != first.MaxTokens {
		t.Fatalf("expected follow-up to keep sampling options")
	}

	msgs := c.Messages()
	if got := roles(msgs); got != "system,user,assistant,tool,assistant" {
		t.Fatalf("unexpected roles: %s", got)
	}
	if msgs[2].ToolCalls[0].ID != "call_1" {
		t.Fatalf("expected tool call on assistant message, got %+v", msgs[2])
	}
	tool := msgs[3]
	if tool.ToolCallID != "call_1" || tool.Name != tools.SearchLibraryName || !strings.Contains(tool.Content, "Romans") {
		t.Fatalf("unexpected tool message: %+v", tool)
	}
	if len(rec.calls) != 1 || rec.calls[0] != "Romans" {
		t.Fatalf("unexpected tool invocations: %v", rec.calls)
	}
	if out.String() != "You own a Romans commentary.\n" {
		t.Fatalf("expected only the follow-up to be printed, got %q", out.String())
	}
	if c.LastResponse().ID != "resp-You own a Romans commentary." {
		t.Fatalf("expected follow-up as last response, got %s", c.LastResponse().ID)
	}
}

func TestRequestCompletionSkipsUnknownTool(t *testing.T) {
	registry := tools.New((&recordingTool{}).handler())
	backend := &fakeBackend{responses: []*Response{
		toolResponse(ToolCall{ID: "call_x", Name: "delete_library", Arguments: `{}`}),
	}}
	c, _ := newTestClient(t, backend, registry, Config{})
	c.AddUserMessage("hi")

	opts := DefaultCompletionOptions()
	opts.Tools = registry.Definitions()
	if err := c.RequestCompletion(context.Background(), opts); err != nil {
		t.Fatalf("RequestCompletion returned error: %v", err)
	}
	if len(backend.requests) != 1 {
		t.Fatalf("expected no follow-up, got %d requests", len(backend.requests))
	}
	if got := roles(c.Messages()); got != "user,assistant" {
		t.Fatalf("expected no tool message, got %s", got)
	}
}

func TestRequestCompletionReportsUnknownToolWhenConfigured(t *testing.T) {
	registry := tools.New((&recordingTool{}).handler())
	backend := &fakeBackend{responses: []*Response{
		toolResponse(ToolCall{ID: "call_x", Name: "delete_library", Arguments: `{}`}),
		textResponse("I cannot do that."),
	}}
	c, _ := newTestClient(t, backend, registry, Config{ReportUnknownTools: true})
	c.AddUserMessage("hi")

	opts := DefaultCompletionOptions()
	opts.Tools = registry.Definitions()
	if err := c.RequestCompletion(context.Background(), opts); err != nil {
		t.Fatalf("RequestCompletion returned error: %v", err)
	}
	msgs := c.Messages()
	if got := roles(msgs); got != "user,assistant,tool,assistant" {
		t.Fatalf("unexpected roles: %s", got)
	}
	if !strings.Contains(msgs[2].Content, "unknown tool: delete_library") || msgs[2].ToolCallID != "call_x" {
		t.Fatalf("unexpected error tool result: %+v", msgs[2])
	}
}

func TestRequestCompletionDoesNotDispatchBeyondCeiling(t *testing.T) {
	rec := &recordingTool{}
	registry := tools.New(rec.handler())
	backend := &fakeBackend{responses: []*Response{
		toolResponse(ToolCall{ID: "call_1", Name: tools.SearchLibraryName, Arguments: `{"query":"a"}`}),
		toolResponse(ToolCall{ID: "call_2", Name: tools.SearchLibraryName, Arguments: `{"query":"b"}`}),
	}}
	c, _ := newTestClient(t, backend, registry, Config{})
	c.AddUserMessage("hi")

	opts := DefaultCompletionOptions()
	opts.Tools = registry.Definitions()
	if err := c.RequestCompletion(context.Background(), opts); err != nil {
		t.Fatalf("RequestCompletion returned error: %v", err)
	}
	if len(backend.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(backend.requests))
	}
	if len(rec.calls) != 1 {
		t.Fatalf("expected only the first round to dispatch, got %v", rec.calls)
	}
	if got := roles(c.Messages()); got != "user,assistant,tool,assistant" {
		t.Fatalf("unexpected roles: %s", got)
	}
}

func TestRequestCompletionHonoursMaxToolRounds(t *testing.T) {
	rec := &recordingTool{}
	registry := tools.New(rec.handler())
	backend := &fakeBackend{responses: []*Response{
		toolResponse(ToolCall{ID: "call_1", Name: tools.SearchLibraryName, Arguments: `{"query":"a"}`}),
		toolResponse(ToolCall{ID: "call_2", Name: tools.SearchLibraryName, Arguments: `{"query":"b"}`}),
		textResponse("done"),
	}}
	c, _ := newTestClient(t, backend, registry, Config{})
	c.AddUserMessage("hi")

	opts := DefaultCompletionOptions()
	opts.Tools = registry.Definitions()
	opts.MaxToolRounds = 2
	if err := c.RequestCompletion(context.Background(), opts); err != nil {
		t.Fatalf("RequestCompletion returned error: %v", err)
	}
	if len(backend.requests) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(backend.requests))
	}
	if len(backend.requests[1].Tools) != 1 {
		t.Fatal("expected tools on the intermediate follow-up")
	}
	if len(backend.requests[2].Tools) != 0 {
		t.Fatal("expected no tools on the final follow-up")
	}
	if len(rec.calls) != 2 {
		t.Fatalf("expected two dispatch rounds, got %v", rec.calls)
	}
}

func TestRequestCompletionPropagatesToolErrors(t *testing.T) {
	failing := tools.NewFunc(tools.SearchLibraryName, "search", func(context.Context, struct{}) (string, error) {
		return "", errors.New("application not ready")
	})
	registry := tools.New(failing)
	backend := &fakeBackend{responses: []*Response{
		toolResponse(ToolCall{ID: "call_1", Name: tools.SearchLibraryName, Arguments: `{}`}),
	}}
	c, _ := newTestClient(t, backend, registry, Config{})
	c.AddUserMessage("hi")

	opts := DefaultCompletionOptions()
	opts.Tools = registry.Definitions()
	err := c.RequestCompletion(context.Background(), opts)
	if err == nil || !strings.Contains(err.Error(), "application not ready") {
		t.Fatalf("expected tool error, got %v", err)
	}
}

// assertToolCallsAnswered fails when an assistant tool call is not followed
// by a tool result carrying its id.
func assertToolCallsAnswered(t *testing.T, msgs []Message) {
	t.Helper()
	for i, msg := range msgs {
		for _, call := range msg.ToolCalls {
			answered := false
			for _, next := range msgs[i+1:] {
				if next.Role != RoleTool {
					break
				}
				if next.ToolCallID == call.ID {
					answered = true
				}
			}
			if !answered {
				t.Fatalf("tool call %s at %d has no tool result; history %s", call.ID, i, roles(msgs))
			}
		}
	}
}

func TestRequestCompletionRestoresHistoryAfterToolError(t *testing.T) {
	type searchArgs struct {
		Query string `json:"query"`
	}
	failing := tools.NewFunc(tools.SearchLibraryName, "search", func(context.Context, searchArgs) (string, error) {
		return "", errors.New("application not ready")
	})
	registry := tools.New(failing)
	backend := &fakeBackend{responses: []*Response{
		toolResponse(ToolCall{ID: "call_1", Name: tools.SearchLibraryName, Arguments: `{"query":"grace"}`}),
		textResponse("Try again later."),
	}}
	c, _ := newTestClient(t, backend, registry, Config{})
	c.SetSystemMessage("sys")
	c.AddUserMessage("find grace")

	opts := DefaultCompletionOptions()
	opts.Tools = registry.Definitions()
	if err := c.RequestCompletion(context.Background(), opts); err == nil {
		t.Fatal("expected tool error")
	}
	if got := roles(c.Messages()); got != "system,user" {
		t.Fatalf("expected history restored to entry state, got %s", got)
	}

	c.TruncateMessages(1)
	c.AddUserMessage("next question")
	if err := c.RequestCompletion(context.Background(), opts); err != nil {
		t.Fatalf("second RequestCompletion returned error: %v", err)
	}
	sent := backend.requests[len(backend.requests)-1].Messages
	if got := roles(sent); got != "system,user" {
		t.Fatalf("unexpected history sent after failure: %s", got)
	}
	assertToolCallsAnswered(t, sent)
	assertToolCallsAnswered(t, c.Messages())
}

func TestTruncateMessagesIgnoresOutOfRange(t *testing.T) {
	c, _ := newTestClient(t, &fakeBackend{}, nil, Config{})
	c.AddUserMessage("one")
	c.AddUserMessage("two")

	c.TruncateMessages(5)
	c.TruncateMessages(-1)
	if got := roles(c.Messages()); got != "user,user" {
		t.Fatalf("unexpected roles: %s", got)
	}
	c.TruncateMessages(1)
	if msgs := c.Messages(); len(msgs) != 1 || msgs[0].Content != "one" {
		t.Fatalf("unexpected history: %+v", msgs)
	}
}

func TestRequestCompletionPropagatesBackendErrors(t *testing.T) {
	backend := &fakeBackend{err: errors.New("401 unauthorized")}
	c, _ := newTestClient(t, backend, nil, Config{})
	c.AddUserMessage("hi")

	err := c.RequestCompletion(context.Background(), DefaultCompletionOptions())
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected backend error, got %v", err)
	}
	if got := roles(c.Messages()); got != "user" {
		t.Fatalf("expected history unchanged, got %s", got)
	}
}

func TestDisplayMessages(t *testing.T) {
	registry := tools.New((&recordingTool{}).handler())
	backend := &fakeBackend{responses: []*Response{
		toolResponse(ToolCall{ID: "call_1", Name: tools.SearchLibraryName, Arguments: `{"query":"Psalms"}`}),
		textResponse("Found it."),
	}}
	c, out := newTestClient(t, backend, registry, Config{})
	c.SetSystemMessage("sys")
	c.AddUserMessage("psalms?")

	opts := DefaultCompletionOptions()
	opts.Tools = registry.Definitions()
	opts.PrintResponse = false
	if err := c.RequestCompletion(context.Background(), opts); err != nil {
		t.Fatalf("RequestCompletion returned error: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected nothing printed, got %q", out.String())
	}

	c.DisplayMessages()
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %q", len(lines), out.String())
	}
	if lines[0] != "SYSTEM: sys" || lines[1] != "USER: psalms?" || lines[2] != "ASSISTANT: " {
		t.Fatalf("unexpected display: %q", lines)
	}
	if !strings.HasPrefix(lines[3], "TOOL: [") || lines[4] != "ASSISTANT: Found it." {
		t.Fatalf("unexpected display: %q", lines)
	}
}

func TestListModels(t *testing.T) {
	c, _ := newTestClient(t, &fakeBackend{}, nil, Config{})
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels returned error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("unexpected models: %v", models)
	}
}

func TestNewRequiresAPIKeyForDefaultBackend(t *testing.T) {
	if _, err := New(Config{Model: "gpt-4o"}); err == nil {
		t.Fatal("expected error without api key")
	}
}
