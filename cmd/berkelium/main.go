package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BerkeliumLabs/berkelium/internal/agent"
	"github.com/BerkeliumLabs/berkelium/internal/config"
	berrors "github.com/BerkeliumLabs/berkelium/internal/errors"
	"github.com/BerkeliumLabs/berkelium/internal/logging"
)

var Version = "dev"

// errReported marks a failure whose message was already printed.
var errReported = errors.New("reported")

var (
	// Global flags
	configPath string
	token      string
	provider   string
	model      string
	autoMode   bool
	strictMode bool
	maxTurns   int
	verbose    bool

	// run flags
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "berkelium",
	Short: "Berkelium - an AI assistant for your terminal",
	Long: `Berkelium is an interactive AI assistant that can read and edit files,
run shell commands and fetch web pages, asking before anything risky.

Run without arguments to start the interactive prompt.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.Context())
	},
}

var runCmd = &cobra.Command{
	Use:   "run [prompt...]",
	Short: "Answer a single prompt and exit",
	Long: `Routes one prompt through the assistant, runs any tools it asks for and
prints the final answer. Slash commands such as "/init src" are resolved first.

With --json the answer and tool activity are printed as one JSON object.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context(), strings.Join(args, " "))
	},
}

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the available slash commands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, opt := range loadCatalog(cfg, logging.Named("commands")).Options() {
			fmt.Fprintln(cmd.OutOrStdout(), opt.Label)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "berkelium version %s\n", Version)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Config file (default: search berkelium.yaml, .berkelium/config.yaml, ...)")
	flags.StringVar(&token, "token", "", "API key (overrides ANTHROPIC_API_KEY / GEMINI_API_KEY)")
	flags.StringVar(&provider, "provider", "", "Model provider: gemini or anthropic")
	flags.StringVarP(&model, "model", "m", "", "Model id")
	flags.BoolVar(&autoMode, "auto", false, "Approve every tool call without asking")
	flags.BoolVar(&strictMode, "strict", false, "Deny every tool call that needs approval")
	flags.IntVar(&maxTurns, "max-turns", 0, "Tool rounds allowed per prompt (default from config)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on the console")
	rootCmd.MarkFlagsMutuallyExclusive("auto", "strict")

	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the answer and tool activity as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	_ = logging.Close()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", berrors.UserMessage(err))
		}
		os.Exit(1)
	}
}

// loadConfig applies the global flags on top of the config files.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		Path:     configPath,
		Token:    token,
		Provider: provider,
		Model:    model,
	})
	if err != nil {
		return nil, err
	}

	switch {
	case autoMode:
		cfg.Permissions.Mode = config.ModeAuto
	case strictMode:
		cfg.Permissions.Mode = config.ModeStrict
	}
	if maxTurns > 0 {
		cfg.Agent.MaxTurns = maxTurns
	}
	cfg.Logging = cfg.Logging.WithVerbose(verbose)
	return cfg, nil
}

// runOnce answers a single prompt on a fresh thread.
func runOnce(ctx context.Context, prompt string) error {
	a, err := newApp(ctx, appOptions{headless: true})
	if err != nil {
		return err
	}
	defer a.Close()

	threadID := agent.NewThreadID()
	if jsonOutput {
		out := &agent.JSONOutput{}
		reply := a.router.Route(ctx, prompt, threadID, out)
		if err := out.Emit(os.Stdout, threadID, reply.Text); err != nil {
			return err
		}
		if reply.Err != nil {
			return errReported
		}
		return nil
	}

	reply := a.router.Route(ctx, prompt, threadID, &agent.HeadlessOutput{Err: os.Stderr})
	if reply.Err != nil {
		fmt.Fprintln(os.Stderr, reply.Text)
		return errReported
	}
	fmt.Println(reply.Text)
	return nil
}
