package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question, err := requireArgs(args, "question")
		if err != nil {
			return err
		}
		client, registry, err := newClient(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		client.AddUserMessage(question)
		return client.RequestCompletion(cmd.Context(), completionOptions(registry))
	},
}

var showHistory bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, registry, err := newClient(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		return runREPL(cmd.Context(), client, replOptions{
			Completion:  completionOptions(registry),
			ShowHistory: showHistory,
			Verbose:     cfg.Verbose,
			Logger:      appLogger,
		}, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the library directly and print JSON results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := requireArgs(args, "query")
		if err != nil {
			return err
		}
		connector, err := newConnector()
		if err != nil {
			return err
		}
		out, err := connector.SearchJSON(cmd.Context(), query)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var passageCmd = &cobra.Command{
	Use:   "passage <reference>",
	Short: "Print the text of a scripture reference",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reference, err := requireArgs(args, "reference")
		if err != nil {
			return err
		}
		connector, err := newConnector()
		if err != nil {
			return err
		}
		bridge, err := connector.Connect(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = bridge.Close() }()

		text, found, err := bridge.GetPassageText(cmd.Context(), reference)
		if err != nil {
			return err
		}
		if !found {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "No passage found for %q\n", reference)
			return nil
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available to the configured API key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, _, err := newClient(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		models, err := client.ListModels(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range models {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().BoolVar(&showHistory, "show-history", false, "Print the full message history after each answer")
	rootCmd.AddCommand(askCmd, chatCmd, searchCmd, passageCmd, modelsCmd)
}
