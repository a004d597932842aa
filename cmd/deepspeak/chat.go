package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhuss/deepspeak/pkg/chat"
	"github.com/rhuss/deepspeak/pkg/debug"
)

// turnFlags are the per-request flags shared by chat and repl.
type turnFlags struct {
	system      string
	model       string
	temperature float64
	maxTokens   int
}

func (f *turnFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.system, "system", "", "system prompt (default from config)")
	cmd.Flags().StringVar(&f.model, "model", "", "model ID (default from config)")
	cmd.Flags().Float64Var(&f.temperature, "temperature", 1, "sampling temperature")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "maximum output tokens (default from config)")
}

// options merges the config defaults with the flags the user set.
func (f *turnFlags) options(cmd *cobra.Command, a *app) *chat.Options {
	opts := a.cfg.ChatOptions()
	if f.model != "" {
		opts.ModelID = f.model
	}
	if cmd.Flags().Changed("temperature") {
		t := f.temperature
		opts.Temperature = &t
	}
	if f.maxTokens > 0 {
		n := f.maxTokens
		opts.MaxOutputTokens = &n
	}
	return opts
}

func (f *turnFlags) systemPrompt(a *app) string {
	if f.system != "" {
		return f.system
	}
	return a.cfg.Defaults.SystemPrompt
}

func newChatCmd(a *app) *cobra.Command {
	var (
		flags  turnFlags
		stream bool
	)

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send one prompt and print the reply",
		Long:  "Send one prompt and print the reply. Without arguments the prompt is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if prompt == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading prompt: %w", err)
				}
				prompt = string(data)
			}
			if strings.TrimSpace(prompt) == "" {
				return errors.New("empty prompt")
			}

			c, err := a.apiClient()
			if err != nil {
				return err
			}

			var messages []chat.Message
			if sys := flags.systemPrompt(a); sys != "" {
				messages = append(messages, chat.NewTextMessage(chat.RoleSystem, sys))
			}
			messages = append(messages, chat.NewTextMessage(chat.RoleUser, prompt))

			opts := flags.options(cmd, a)
			out := cmd.OutOrStdout()

			if stream {
				_, err := streamTurn(cmd.Context(), c, messages, opts, out)
				return err
			}

			comp, err := c.Complete(cmd.Context(), messages, opts)
			if err != nil {
				return err
			}
			if comp.Usage != nil {
				debug.Log("cli", "usage",
					"input", comp.Usage.InputTokenCount,
					"output", comp.Usage.OutputTokenCount,
					"total", comp.Usage.TotalTokenCount,
				)
			}
			fmt.Fprintln(out, comp.Text())
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&stream, "stream", false, "print the reply as it is generated")

	return cmd
}

// streamTurn prints a streamed reply as it arrives and returns its full text.
func streamTurn(ctx context.Context, c chat.Client, messages []chat.Message, opts *chat.Options, out io.Writer) (string, error) {
	updates, err := c.CompleteStreaming(ctx, messages, opts)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for u := range updates {
		if u.Err != nil {
			fmt.Fprintln(out)
			return sb.String(), u.Err
		}
		sb.WriteString(u.Text)
		fmt.Fprint(out, u.Text)
	}
	fmt.Fprintln(out)

	if err := ctx.Err(); err != nil {
		return sb.String(), err
	}
	return sb.String(), nil
}
