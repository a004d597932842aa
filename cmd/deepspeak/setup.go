package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rhuss/deepspeak/pkg/config"
)

func newSetupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Save your DeepSeek API key to the dotenv file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), "Enter your DeepSeek API key: ")

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading API key: %w", err)
			}
			apiKey := strings.TrimSpace(line)
			if apiKey == "" {
				return errors.New("API key must not be empty")
			}

			if err := writeEnvKey(a.envFile, config.EnvAPIKey, apiKey); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nAPI key saved to %s\n", a.envFile)
			return nil
		},
	}
}

// writeEnvKey sets key in the dotenv file at path, keeping other entries.
// The file is written with owner-only permissions.
func writeEnvKey(path, key, value string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		env = map[string]string{}
	}
	env[key] = value

	content, err := godotenv.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return os.Chmod(path, 0o600)
}
