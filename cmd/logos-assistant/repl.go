package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minhyannv/logos-assistant-go/pkg/conversation"
	loggerpkg "github.com/minhyannv/logos-assistant-go/pkg/logger"
)

// replOptions configures REPL behavior.
type replOptions struct {
	Completion  conversation.CompletionOptions
	ShowHistory bool
	Verbose     bool
	Logger      loggerpkg.Logger
}

// session is the part of the conversation client the REPL drives.
type session interface {
	AddUserMessage(text string)
	SetSystemMessage(text string)
	Messages() []conversation.Message
	ClearMessages()
	TruncateMessages(n int)
	DisplayMessages()
	RequestCompletion(ctx context.Context, opts conversation.CompletionOptions) error
}

// runREPL starts an interactive REPL session for the given client. Answers
// are printed by the client itself.
func runREPL(ctx context.Context, client session, opts replOptions, in io.Reader, out io.Writer) error {
	if client == nil {
		return fmt.Errorf("conversation client is required")
	}
	if in == nil {
		return fmt.Errorf("input reader is required")
	}
	if out == nil {
		out = io.Discard
	}
	if ctx == nil {
		ctx = context.Background()
	}

	loggerpkg.Debug(opts.Verbose, opts.Logger, "repl start", map[string]any{
		"max_tool_rounds": opts.Completion.MaxToolRounds,
		"tools":           len(opts.Completion.Tools),
	})

	scanner := bufio.NewScanner(in)
	printWelcome(out)

	for {
		_, _ = fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			handled, shouldQuit := handleCommand(input, client, out)
			if shouldQuit {
				break
			}
			if handled {
				continue
			}
		}

		mark := len(client.Messages())
		client.AddUserMessage(input)
		if err := client.RequestCompletion(ctx, opts.Completion); err != nil {
			// Drop the unanswered question so the next one is not sent after it.
			client.TruncateMessages(mark)
			_, _ = fmt.Fprintf(out, "Error: %v\n\n", err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		if opts.ShowHistory {
			client.DisplayMessages()
		}
		_, _ = fmt.Fprintln(out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func printWelcome(out io.Writer) {
	_, _ = fmt.Fprintln(out, "=== Logos Assistant - Interactive Mode ===")
	_, _ = fmt.Fprintln(out, "Type your message and press Enter.")
	printHelp(out)
}

func handleCommand(
	input string,
	client session,
	out io.Writer,
) (bool, bool) {
	cmd := strings.ToLower(input)
	switch cmd {
	case "/help", "/h":
		printHelp(out)
		return true, false
	case "/clear", "/c":
		system := ""
		if msgs := client.Messages(); len(msgs) > 0 && msgs[0].Role == conversation.RoleSystem {
			system = msgs[0].Content
		}
		client.ClearMessages()
		if system != "" {
			client.SetSystemMessage(system)
		}
		_, _ = fmt.Fprintln(out, "Conversation history cleared.")
		_, _ = fmt.Fprintln(out)
		return true, false
	case "/history":
		client.DisplayMessages()
		_, _ = fmt.Fprintln(out)
		return true, false
	case "/quit", "/exit", "/q":
		_, _ = fmt.Fprintln(out, "Goodbye!")
		return true, true
	default:
		_, _ = fmt.Fprintf(out, "Unknown command: %s. Type /help for available commands.\n\n", input)
		return true, false
	}
}

func printHelp(out io.Writer) {
	_, _ = fmt.Fprintln(out, "Commands:")
	_, _ = fmt.Fprintln(out, "  /help    - Show this help message")
	_, _ = fmt.Fprintln(out, "  /history - Show every message sent to the model")
	_, _ = fmt.Fprintln(out, "  /clear   - Clear conversation history")
	_, _ = fmt.Fprintln(out, "  /quit    - Exit the program")
	_, _ = fmt.Fprintln(out)
}
