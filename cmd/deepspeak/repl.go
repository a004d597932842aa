package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhuss/deepspeak/pkg/chat"
)

func newReplCmd(a *app) *cobra.Command {
	var flags turnFlags

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive streaming chat session",
		Long: `Start an interactive streaming chat session. The conversation history is
kept for the whole session. Type /reset to clear it and exit or quit to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.apiClient()
			if err != nil {
				return err
			}

			opts := flags.options(cmd, a)
			out := cmd.OutOrStdout()

			var base []chat.Message
			if sys := flags.systemPrompt(a); sys != "" {
				base = append(base, chat.NewTextMessage(chat.RoleSystem, sys))
			}
			history := append([]chat.Message(nil), base...)

			fmt.Fprintln(out, "Starting chat session (type 'exit' to quit)")
			fmt.Fprintln(out, "----------------------------------------")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "\nYou: ")
				if !scanner.Scan() {
					break
				}

				input := strings.TrimSpace(scanner.Text())
				switch input {
				case "":
					continue
				case "exit", "quit":
					return nil
				case "/reset":
					history = append([]chat.Message(nil), base...)
					fmt.Fprintln(out, "History cleared.")
					continue
				}

				history = append(history, chat.NewTextMessage(chat.RoleUser, input))

				fmt.Fprint(out, "\nDeepSeek: ")
				reply, err := streamTurn(cmd.Context(), c, history, opts, out)
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					// Drop the failed turn so the next prompt starts clean.
					history = history[:len(history)-1]
					slog.Error("chat turn failed", "error", err)
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
					continue
				}

				history = append(history, chat.NewTextMessage(chat.RoleAssistant, reply))
			}
			return scanner.Err()
		},
	}

	flags.register(cmd)
	return cmd
}
