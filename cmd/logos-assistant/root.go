package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	configpkg "github.com/minhyannv/logos-assistant-go/pkg/config"
	"github.com/minhyannv/logos-assistant-go/pkg/conversation"
	"github.com/minhyannv/logos-assistant-go/pkg/library"
	loggerpkg "github.com/minhyannv/logos-assistant-go/pkg/logger"
	"github.com/minhyannv/logos-assistant-go/pkg/telemetry"
	"github.com/minhyannv/logos-assistant-go/pkg/tools"
	"github.com/spf13/cobra"
)

var (
	cfg               = configpkg.DefaultConfig()
	appLogger         loggerpkg.Logger = loggerpkg.NopLogger{}
	shutdownTelemetry telemetry.Shutdown
	logFile           io.Closer

	configPath string
	flagValues = configpkg.DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "logos-assistant",
	Short: "Chat with a model that can search your Bible software library",
	Long: `logos-assistant connects a chat-completion model to the automation interface of
Logos Bible Software. The model may search the library and look up passages;
results are returned to it as tool output.

Set OPENAI_API_KEY (a .env file is read if present). Outside Windows, point
--fixture at a YAML library fixture.`,
	SilenceUsage:       true,
	PersistentPreRunE:  loadRootConfig,
	PersistentPostRunE: finishRun,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "YAML or TOML config file")
	flags.StringVar(&flagValues.Model, "model", "", "Model identifier (overrides OPENAI_MODEL)")
	flags.StringVar(&flagValues.LibraryFixture, "fixture", "", "YAML library fixture used instead of the desktop application")
	flags.BoolVar(&flagValues.Verbose, "verbose", false, "Verbose logging")
	flags.StringVar(&flagValues.LogFile, "log-file", "", "Append JSON log lines to this file instead of stderr")
	flags.Int64Var(&flagValues.MaxTokens, "max-tokens", flagValues.MaxTokens, "Response length cap")
	flags.Float64Var(&flagValues.Temperature, "temperature", flagValues.Temperature, "Sampling temperature")
	flags.IntVar(&flagValues.MaxToolRounds, "max-tool-rounds", flagValues.MaxToolRounds, "Tool dispatch rounds per question")
	flags.DurationVar(&flagValues.ConnectTimeout, "connect-timeout", flagValues.ConnectTimeout, "How long to wait for the desktop application")

	rootCmd.Version = Version
}

// loadRootConfig layers defaults, config file, environment and flags.
func loadRootConfig(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	loaded := configpkg.DefaultConfig()
	if configPath != "" {
		fromFile, err := configpkg.LoadFile(configPath)
		if err != nil {
			return err
		}
		loaded = fromFile
	}
	loaded = configpkg.ApplyEnv(loaded)

	flags := cmd.Flags()
	if flags.Changed("model") {
		loaded.Model = flagValues.Model
	}
	if flags.Changed("fixture") {
		loaded.LibraryFixture = flagValues.LibraryFixture
	}
	if flags.Changed("log-file") {
		loaded.LogFile = flagValues.LogFile
	}
	if flags.Changed("verbose") {
		loaded.Verbose = flagValues.Verbose
	}
	if flags.Changed("max-tokens") {
		loaded.MaxTokens = flagValues.MaxTokens
	}
	if flags.Changed("temperature") {
		loaded.Temperature = flagValues.Temperature
	}
	if flags.Changed("max-tool-rounds") {
		loaded.MaxToolRounds = flagValues.MaxToolRounds
	}
	if flags.Changed("connect-timeout") {
		loaded.ConnectTimeout = flagValues.ConnectTimeout
	}
	cfg = configpkg.Normalize(loaded)

	var err error
	appLogger, logFile, err = openLogger(cfg)
	if err != nil {
		return err
	}
	loggerpkg.Debug(cfg.Verbose, appLogger, "config loaded", map[string]any{
		"config":          configPath,
		"model":           cfg.Model,
		"base_url":        cfg.BaseURL,
		"fixture":         cfg.LibraryFixture,
		"max_tool_rounds": cfg.MaxToolRounds,
	})

	telemetry.Version = Version
	shutdown, err := telemetry.Setup(cmd.Context(), telemetry.Config{Endpoint: cfg.TelemetryEndpoint})
	if err != nil {
		return err
	}
	shutdownTelemetry = shutdown
	if cfg.TelemetryEndpoint != "" {
		loggerpkg.Info(appLogger, "tracing enabled", map[string]any{"endpoint": cfg.TelemetryEndpoint})
	}
	return nil
}

// openLogger logs to the console, or as JSON lines to cfg.LogFile when set.
func openLogger(cfg configpkg.Config) (loggerpkg.Logger, io.Closer, error) {
	if cfg.LogFile == "" {
		return loggerpkg.NewConsoleLogger(os.Stderr, cfg.Verbose), nil, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return loggerpkg.NewJSONLogger(f, cfg.Verbose), f, nil
}

func finishRun(cmd *cobra.Command, _ []string) error {
	var errs []error
	if shutdownTelemetry != nil {
		errs = append(errs, shutdownTelemetry(context.WithoutCancel(cmd.Context())))
	}
	if logFile != nil {
		errs = append(errs, logFile.Close())
		logFile = nil
	}
	return errors.Join(errs...)
}

func newConnector() (library.Connector, error) {
	opts := library.Options{
		PollInterval: cfg.PollInterval,
		Timeout:      cfg.ConnectTimeout,
		Logger:       appLogger,
		Verbose:      cfg.Verbose,
	}
	if cfg.LibraryFixture == "" {
		return library.Connector{NewLauncher: library.DefaultLauncher, Options: opts}, nil
	}
	fixture, err := library.LoadFixture(cfg.LibraryFixture)
	if err != nil {
		return library.Connector{}, err
	}
	return library.Connector{
		NewLauncher: func() (library.Launcher, error) { return fixture.Launcher(), nil },
		Options:     opts,
	}, nil
}

func newClient(out io.Writer) (*conversation.Client, *tools.Registry, error) {
	connector, err := newConnector()
	if err != nil {
		return nil, nil, err
	}
	registry := tools.Builtin(connector)
	client, err := conversation.New(conversation.Config{
		APIKey:             cfg.APIKey,
		BaseURL:            cfg.BaseURL,
		Model:              cfg.Model,
		ReportUnknownTools: cfg.ReportUnknownTools,
		Verbose:            cfg.Verbose,
	}, conversation.WithTools(registry), conversation.WithLogger(appLogger), conversation.WithOutput(out))
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(cfg.SystemMessage) != "" {
		client.SetSystemMessage(cfg.SystemMessage)
	}
	return client, registry, nil
}

func completionOptions(registry *tools.Registry) conversation.CompletionOptions {
	return conversation.CompletionOptions{
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
		CompletionCount: cfg.CompletionCount,
		Tools:           registry.Definitions(),
		PrintResponse:   true,
		MaxToolRounds:   cfg.MaxToolRounds,
	}
}

func requireArgs(args []string, what string) (string, error) {
	joined := strings.TrimSpace(strings.Join(args, " "))
	if joined == "" {
		return "", fmt.Errorf("%s is required", what)
	}
	return joined, nil
}
