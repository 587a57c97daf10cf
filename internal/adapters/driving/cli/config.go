package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and change settings",
	Long: `Settings are read from defaults, then the config file, then the
environment (OPENAI_API_KEY, ANTHROPIC_API_KEY, VERSELENS_DSN).`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting",
	Long: `Persists a setting to the config file. When the value of an api_key
setting is omitted it is read from the terminal without echo.

Examples:
  verselens config set embedding.provider ollama
  verselens config set llm.api_key
  verselens config set search.limit 20`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := settingsPort()
		if err != nil {
			return err
		}
		cmd.Println(svc.Path())
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate settings and ping the AI providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := settingsPort()
		if err != nil {
			return err
		}
		if err := svc.Validate(); err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}
		cmd.Println("Configuration OK")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd, configPathCmd, configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

// readPassword reads a secret without echo. Replaced in tests.
var readPassword = func(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		return string(b), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, "api_key")
}

// maskAPIKey keeps the last four characters of a key.
func maskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func displayValue(key, value string) string {
	if isSecretKey(key) {
		value = maskAPIKey(value)
	}
	if value == "" {
		return scoreStyle.Render("(not set)")
	}
	return value
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	svc, err := settingsPort()
	if err != nil {
		return err
	}

	cmd.Println(headingStyle.Render("Settings") + " " + scoreStyle.Render(svc.Path()))
	section := ""
	for _, key := range svc.Keys() {
		value, err := svc.Value(key)
		if err != nil {
			return err
		}
		if prefix, _, _ := strings.Cut(key, "."); prefix != section {
			section = prefix
			cmd.Println()
			cmd.Println(headingStyle.Render(prefix))
		}
		cmd.Printf("  %-28s %s\n", key, displayValue(key, value))
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	svc, err := settingsPort()
	if err != nil {
		return err
	}
	value, err := svc.Value(args[0])
	if err != nil {
		return err
	}
	if isSecretKey(args[0]) {
		value = maskAPIKey(value)
	}
	cmd.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	svc, err := settingsPort()
	if err != nil {
		return err
	}

	key := args[0]
	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case isSecretKey(key):
		cmd.PrintErrf("Enter %s: ", key)
		value, err = readPassword(cmd.InOrStdin())
		cmd.PrintErrln()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
	default:
		return fmt.Errorf("missing value for %s", key)
	}

	if err := svc.Set(key, value); err != nil {
		return err
	}
	cmd.Printf("%s = %s\n", key, displayValue(key, value))
	return nil
}
