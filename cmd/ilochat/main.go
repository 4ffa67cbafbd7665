package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ilochat/cmd/ilochat/chat"
	"ilochat/internal/api"
	"ilochat/internal/config"
	"ilochat/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	baseURL    string
	locale     string

	// Loaded in PersistentPreRunE
	cfg *config.Config

	// Logger for one-shot commands
	logger *zap.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "ilochat",
	Short: "ilochat - terminal assistant for writing intended learning outcomes",
	Long: `ilochat is a terminal client for the learning design assistant.

It guides teachers from a course topic to well-formed intended learning
outcomes (ILOs): pick a subject, grade level, ILO category and Bloom's
Taxonomy level, chat with the assistant, analyze course documents, and
generate ILO statements.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.Path()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if baseURL != "" {
			cfg.Backend.BaseURL = baseURL
		}
		if locale != "" {
			cfg.Backend.Locale = locale
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := logging.Initialize(config.Dir()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: file logging unavailable: %v\n", err)
		}

		// The interactive chat has its own UI; a zap logger on stderr
		// would tear the screen.
		if cmd.CalledAs() == "ilochat" {
			return nil
		}
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.ilochat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&locale, "locale", "", "Display locale: zh_HK, en_US or zh_CN")

	rootCmd.AddCommand(taxonomiesCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(suggestDPCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runInteractiveChat launches the TUI.
func runInteractiveChat() error {
	logging.Boot("starting interactive chat against %s", cfg.Backend.BaseURL)

	model, err := chat.NewModel(cfg)
	if err != nil {
		return err
	}
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat interface failed: %w", err)
	}
	return nil
}

// backendClient builds an API client for one-shot commands.
func backendClient() *api.Client {
	return api.New(api.Config{
		BaseURL:     cfg.Backend.BaseURL,
		Locale:      cfg.Backend.Locale,
		Token:       cfg.Backend.Token,
		ListTimeout: cfg.GetListTimeout(),
	})
}
