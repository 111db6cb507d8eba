// Command deskagent drives the desktop automation agent: it observes the
// screen and accessibility tree, asks an LLM what to do next, and executes
// the resulting tool calls, taking instructions from a CLI task argument,
// an overlay UI websocket, a mail inbox, and OS notifications.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Build information, populated by ldflags at release time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// Best-effort: a missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "deskagent:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:          "deskagent [task]",
		Short:        "Autonomous desktop automation agent",
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.task = args[0]
			}
			if opts.task == "" {
				opts.interactive = true
			}
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose (debug, text-formatted) logging")
	cmd.Flags().BoolVar(&opts.noUI, "no-ui", false, "Disable the overlay UI websocket server")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Stay running and accept further tasks after the first completes")
	cmd.Flags().BoolVar(&opts.clear, "clear", false, "Purge pending inbound/outbound messages at startup")
	cmd.Flags().StringVarP(&opts.provider, "provider", "p", "", "LLM provider to use (overrides config default)")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "deskagent.yaml", "Path to YAML configuration file")

	cmd.Flags().BoolVar(&opts.anthropic, "anthropic", false, "Shorthand for --provider anthropic")
	cmd.Flags().BoolVar(&opts.openai, "openai", false, "Shorthand for --provider openai")

	return cmd
}

// runOptions collects every CLI flag into one value, mirroring how
// cobra.Command handlers in larger CLIs pass a single options struct down
// to the run function instead of threading individual flag variables.
type runOptions struct {
	task        string
	verbose     bool
	noUI        bool
	interactive bool
	clear       bool
	provider    string
	configPath  string

	anthropic bool
	openai    bool
}

func (o *runOptions) resolveProvider(defaultProvider string) string {
	switch {
	case o.provider != "":
		return o.provider
	case o.anthropic:
		return "anthropic"
	case o.openai:
		return "openai"
	default:
		return defaultProvider
	}
}
